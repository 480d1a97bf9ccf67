// Package textindex mirrors ingested documents into a local bleve index so they
// can be looked up by keyword next to the vector collections.
package textindex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// Doc is the indexed form of one ingested document.
type Doc struct {
	Instruction string `json:"instruction"`
	Output      string `json:"output"`
}

type Hit struct {
	ID          string
	Score       float64
	Instruction string
	Output      string
}

type Index struct {
	index bleve.Index
}

// Open opens the index at dir, creating it when it does not exist.
func Open(dir string) (*Index, error) {
	if _, err := os.Stat(filepath.Join(dir, "index_meta.json")); err == nil {
		index, err := bleve.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open bleve index: %w", err)
		}
		return &Index{index: index}, nil
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create text index dir: %w", err)
	}
	index, err := bleve.New(dir, buildIndexMapping())
	if err != nil {
		if errors.Is(err, bleve.ErrorIndexPathExists) {
			return nil, fmt.Errorf("text index path %s exists but is not an index", dir)
		}
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexDocs writes docs in one batch, replacing any existing document with the same id.
func (i *Index) IndexDocs(docs map[string]Doc) error {
	if len(docs) == 0 {
		return nil
	}
	batch := i.index.NewBatch()
	for id, doc := range docs {
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("index doc %s: %w", id, err)
		}
	}
	return i.index.Batch(batch)
}

// Search matches query against instructions (boosted) and outputs.
func (i *Index) Search(query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	instructionQuery := bleve.NewMatchQuery(query)
	instructionQuery.SetField("instruction")
	instructionQuery.SetBoost(2.0)
	outputQuery := bleve.NewMatchQuery(query)
	outputQuery.SetField("output")
	outputQuery.SetBoost(1.0)

	disjunction := bleve.NewDisjunctionQuery([]blevequery.Query{instructionQuery, outputQuery}...)
	req := bleve.NewSearchRequestOptions(disjunction, topK, 0, false)
	req.Fields = []string{"instruction", "output"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		instruction, _ := hit.Fields["instruction"].(string)
		output, _ := hit.Fields["output"].(string)
		hits = append(hits, Hit{
			ID:          hit.ID,
			Score:       hit.Score,
			Instruction: instruction,
			Output:      output,
		})
	}
	return hits, nil
}

func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

func (i *Index) Close() error {
	return i.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	// Mixed-language content; the standard analyzer only tokenizes on unicode
	// boundaries and lowercases.
	indexMapping.DefaultAnalyzer = "standard"
	indexMapping.DefaultField = "output"

	docMapping := bleve.NewDocumentMapping()

	instructionField := bleve.NewTextFieldMapping()
	instructionField.Store = true
	instructionField.Index = true
	docMapping.AddFieldMappingsAt("instruction", instructionField)

	outputField := bleve.NewTextFieldMapping()
	outputField.Store = true
	outputField.Index = true
	docMapping.AddFieldMappingsAt("output", outputField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
