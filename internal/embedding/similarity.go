package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/viterin/vek/vek32"
)

// DefaultMatryoshkaDim is the prefix length used for ranking when none is given.
const DefaultMatryoshkaDim = 1024

// ErrEmptyText is returned when a blank text is given for ranking.
var ErrEmptyText = errors.New("cannot rank an empty text")

// Truncate returns the first dim components of vec. It panics when vec is shorter
// than dim; callers check the length first.
func Truncate(vec []float32, dim int) []float32 {
	if dim < 0 || dim > len(vec) {
		panic(fmt.Sprintf("cannot truncate vector of length %d to %d", len(vec), dim))
	}
	return vec[:dim]
}

// Dot is the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

type SimilarityOptions struct {
	QueryTask   Task
	PassageTask Task
	// MatryoshkaDim truncates every vector before scoring; vectors shorter than
	// this are used whole.
	MatryoshkaDim int
	// TopK limits the result; 0 keeps every text.
	TopK int
}

func (o SimilarityOptions) withDefaults() SimilarityOptions {
	if o.QueryTask == "" {
		o.QueryTask = TaskRetrievalQuery
	}
	if o.PassageTask == "" {
		o.PassageTask = TaskRetrievalPassage
	}
	if o.MatryoshkaDim <= 0 {
		o.MatryoshkaDim = DefaultMatryoshkaDim
	}
	return o
}

// SimilarityResult holds parallel slices ordered by descending score.
type SimilarityResult struct {
	Texts   []string
	Indices []int
	Scores  []float32
}

// FindSimilarTexts ranks texts against query by dot product of truncated embeddings.
// Ties keep input order. Blank query or candidate texts are rejected before any
// encode call.
func FindSimilarTexts(ctx context.Context, enc Encoder, query string, texts []string, opts SimilarityOptions) (*SimilarityResult, error) {
	opts = opts.withDefaults()
	if len(texts) == 0 {
		return &SimilarityResult{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyText
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
	}

	queryVecs, err := enc.Encode(ctx, []string{query}, opts.QueryTask)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if len(queryVecs) != 1 || len(queryVecs[0]) == 0 {
		return nil, fmt.Errorf("encode query: no embedding returned")
	}
	textVecs, err := enc.Encode(ctx, texts, opts.PassageTask)
	if err != nil {
		return nil, fmt.Errorf("encode texts: %w", err)
	}
	if len(textVecs) != len(texts) {
		return nil, fmt.Errorf("encode texts: expected %d embeddings, got %d", len(texts), len(textVecs))
	}

	q := prefix(queryVecs[0], opts.MatryoshkaDim)
	scores := make([]float32, len(texts))
	for i, vec := range textVecs {
		v := prefix(vec, opts.MatryoshkaDim)
		if len(v) != len(q) {
			return nil, fmt.Errorf("text %d: embedding length %d does not match query length %d", i, len(v), len(q))
		}
		scores[i] = Dot(q, v)
	}

	order := make([]int, len(texts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if opts.TopK > 0 && opts.TopK < len(order) {
		order = order[:opts.TopK]
	}

	result := &SimilarityResult{
		Texts:   make([]string, len(order)),
		Indices: make([]int, len(order)),
		Scores:  make([]float32, len(order)),
	}
	for i, idx := range order {
		result.Texts[i] = texts[idx]
		result.Indices[i] = idx
		result.Scores[i] = scores[idx]
	}
	return result, nil
}

func prefix(vec []float32, dim int) []float32 {
	if dim > len(vec) {
		return vec
	}
	return vec[:dim]
}
