// Package smoke checks that the embedding provider ranks a known multilingual
// example the expected way before any data is ingested.
package smoke

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/embedding"
)

// Texts are the canned candidates; the last one is the only relevant passage.
var Texts = []string{
	"Follow the white rabbit.",
	"Sigue al conejo blanco.",
	"Suis le lapin blanc.",
	"跟着白兔走。",
	"اتبع الأرنب الأبيض.",
	"Folge dem weißen Kaninchen.",
	"KAIST's Official mascot is NUBZUK",
}

// Query describes the KAIST mascot in Korean.
const Query = "귀엽고 넙죽한 반달돌칼 마스코트"

const (
	ExpectedIndex = 6
	MatryoshkaDim = 512
)

// Run ranks Texts against Query and fails unless ExpectedIndex comes first.
func Run(ctx context.Context, enc embedding.Encoder, log logrus.FieldLogger) (*embedding.SimilarityResult, error) {
	res, err := embedding.FindSimilarTexts(ctx, enc, Query, Texts, embedding.SimilarityOptions{
		QueryTask:     embedding.TaskRetrievalQuery,
		PassageTask:   embedding.TaskRetrievalPassage,
		MatryoshkaDim: MatryoshkaDim,
	})
	if err != nil {
		return nil, err
	}
	if log != nil {
		for i := range res.Indices {
			log.WithFields(logrus.Fields{
				"rank":  i + 1,
				"index": res.Indices[i],
				"score": res.Scores[i],
			}).Debug(res.Texts[i])
		}
	}
	if len(res.Indices) == 0 || res.Indices[0] != ExpectedIndex {
		return res, fmt.Errorf("smoke test failed: expected text %d to rank first, got %v", ExpectedIndex, res.Indices)
	}
	return res, nil
}
