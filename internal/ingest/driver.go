// Package ingest embeds dataset documents once and stores prefix-truncated copies
// of each vector in several collections of different dimensions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/config"
	"github.com/DreamCats/vecload/internal/dataset"
	"github.com/DreamCats/vecload/internal/embedding"
	"github.com/DreamCats/vecload/internal/progress"
	"github.com/DreamCats/vecload/internal/textindex"
	"github.com/DreamCats/vecload/internal/vectorstore"
)

const DefaultBatchSize = 100

var (
	ErrNoDocuments    = errors.New("no valid documents to embed")
	ErrEncodeMismatch = errors.New("embedding count does not match document count")
	ErrPointsLost     = errors.New("points were lost during upsert")
)

// Target is one collection and the prefix length stored in it.
type Target struct {
	Name      string
	Dimension int
}

// TargetsFromConfig converts configured collections to targets, keeping order.
func TargetsFromConfig(cols []config.CollectionConfig) []Target {
	targets := make([]Target, 0, len(cols))
	for _, c := range cols {
		targets = append(targets, Target{Name: c.Name, Dimension: c.Dimension})
	}
	return targets
}

// Document is a dataset row that survived filtering.
type Document struct {
	ID          string
	Instruction string
	Output      string
}

// Mirror receives every flushed document; the text index implements it.
type Mirror interface {
	IndexDocs(docs map[string]textindex.Doc) error
}

type DriverOptions struct {
	Source  dataset.Source
	Encoder embedding.Encoder
	Store   vectorstore.Store
	Targets []Target
	// BatchSize is the number of documents per upsert flush.
	BatchSize int
	// Strict turns lost points into ErrPointsLost once the run has finished.
	Strict bool
	Mirror Mirror
	// Progress draws a spinner and a bar on ProgressOut (stderr when nil).
	Progress    bool
	ProgressOut io.Writer
	Log         logrus.FieldLogger
	// NewID generates document ids; uuid.NewString when nil.
	NewID func() string
}

type Driver struct {
	source      dataset.Source
	encoder     embedding.Encoder
	store       vectorstore.Store
	targets     []Target
	batchSize   int
	strict      bool
	mirror      Mirror
	progress    bool
	progressOut io.Writer
	log         logrus.FieldLogger
	newID       func() string
}

func NewDriver(opts DriverOptions) (*Driver, error) {
	if opts.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if len(opts.Targets) == 0 {
		return nil, fmt.Errorf("at least one target collection is required")
	}
	for _, t := range opts.Targets {
		if t.Name == "" || t.Dimension <= 0 {
			return nil, fmt.Errorf("invalid target %q with dimension %d", t.Name, t.Dimension)
		}
	}
	d := &Driver{
		source:      opts.Source,
		encoder:     opts.Encoder,
		store:       opts.Store,
		targets:     opts.Targets,
		batchSize:   opts.BatchSize,
		strict:      opts.Strict,
		mirror:      opts.Mirror,
		progress:    opts.Progress,
		progressOut: opts.ProgressOut,
		log:         opts.Log,
		newID:       opts.NewID,
	}
	if d.batchSize <= 0 {
		d.batchSize = DefaultBatchSize
	}
	if d.log == nil {
		d.log = logrus.New()
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	return d, nil
}

// Run loads the dataset and ingests it.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	if d.source == nil {
		return nil, fmt.Errorf("dataset source is required")
	}
	rows, err := d.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	d.log.WithField("rows", len(rows)).Info("loaded data points")
	return d.Ingest(ctx, rows)
}

// Ingest filters rows, encodes the outputs in one call and upserts truncated
// vectors into every target in batches. Upsert failures drop the batch and are
// counted in the report.
func (d *Driver) Ingest(ctx context.Context, rows []dataset.Row) (*Report, error) {
	started := time.Now()
	report := newReport(d.targets)
	report.RowsLoaded = len(rows)

	docs := d.filter(rows)
	report.Documents = len(docs)
	report.RowsFiltered = len(rows) - len(docs)
	if len(docs) == 0 {
		d.log.Error("no valid texts found for embedding")
		return report, ErrNoDocuments
	}

	vectors, err := d.encode(ctx, docs)
	if err != nil {
		return report, err
	}
	if len(vectors) != len(docs) {
		d.log.WithFields(logrus.Fields{
			"documents":  len(docs),
			"embeddings": len(vectors),
		}).Error("embedding count mismatch")
		return report, fmt.Errorf("%w: %d documents, %d embeddings", ErrEncodeMismatch, len(docs), len(vectors))
	}

	b := newBatcher(d, report)
	bar := progress.New(d.progress, d.progressOut, "upserting")
	bar.Start(len(docs))

	processed := 0
	last := len(vectors) - 1
	for i, vec := range vectors {
		bar.Increment()
		doc := docs[i]
		if len(vec) == 0 {
			d.log.WithField("instruction", preview(doc.Instruction)).Warn("empty embedding received, skipping document")
			report.EmbeddingsSkipped++
			continue
		}

		payload := map[string]any{"ground_truth": doc.Instruction}
		for _, t := range d.targets {
			if len(vec) < t.Dimension {
				d.log.WithFields(logrus.Fields{
					"collection": t.Name,
					"length":     len(vec),
					"dimension":  t.Dimension,
				}).Error("embedding too short for target dimension, skipping point")
				report.Collections[t.Name].ShortSkipped++
				continue
			}
			b.add(t.Name, vectorstore.Point{
				ID:      doc.ID,
				Vector:  embedding.Truncate(vec, t.Dimension),
				Payload: payload,
			})
		}
		b.addDoc(doc)

		processed++
		if processed%d.batchSize == 0 || i == last {
			if err := b.flush(ctx, processed); err != nil {
				bar.Finish()
				return report, err
			}
		}
	}
	bar.Finish()

	// Points stay pending when the final document had an empty embedding.
	if b.pending() {
		if err := b.flush(ctx, processed); err != nil {
			return report, err
		}
	}

	report.Elapsed = time.Since(started)
	d.log.WithFields(logrus.Fields{
		"documents": report.Documents,
		"skipped":   report.EmbeddingsSkipped,
		"flushes":   report.Flushes,
		"lost":      report.Lost(),
		"elapsed":   report.Elapsed.Round(time.Millisecond).String(),
	}).Info("ingestion finished")

	if d.strict && report.Lost() > 0 {
		return report, fmt.Errorf("%w: %d points", ErrPointsLost, report.Lost())
	}
	return report, nil
}

func (d *Driver) filter(rows []dataset.Row) []Document {
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Output) == "" || strings.TrimSpace(row.Instruction) == "" {
			continue
		}
		docs = append(docs, Document{
			ID:          d.newID(),
			Instruction: row.Instruction,
			Output:      row.Output,
		})
	}
	return docs
}

// encode runs the single batch encode on its own goroutine and waits for it.
func (d *Driver) encode(ctx context.Context, docs []Document) ([][]float32, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Output
	}

	type result struct {
		vectors [][]float32
		err     error
	}
	done := make(chan result, 1)
	stop := progress.StartSpinner(d.progress, d.progressOut, fmt.Sprintf("embedding %d texts", len(texts)))
	go func() {
		vectors, err := d.encoder.Encode(ctx, texts, embedding.TaskRetrievalPassage)
		done <- result{vectors: vectors, err: err}
	}()
	res := <-done
	stop()

	if res.err != nil {
		d.log.WithError(res.err).Error("batch embedding failed")
		return nil, fmt.Errorf("encode documents: %w", res.err)
	}
	return res.vectors, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
