package ingest

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/textindex"
	"github.com/DreamCats/vecload/internal/vectorstore"
)

// batcher accumulates points per collection between flushes.
type batcher struct {
	d      *Driver
	report *Report
	points map[string][]vectorstore.Point
	docs   map[string]textindex.Doc
}

func newBatcher(d *Driver, report *Report) *batcher {
	points := make(map[string][]vectorstore.Point, len(d.targets))
	for _, t := range d.targets {
		points[t.Name] = nil
	}
	return &batcher{d: d, report: report, points: points, docs: map[string]textindex.Doc{}}
}

func (b *batcher) add(collection string, p vectorstore.Point) {
	b.points[collection] = append(b.points[collection], p)
	b.report.Collections[collection].Projected++
}

func (b *batcher) addDoc(doc Document) {
	if b.d.mirror == nil {
		return
	}
	b.docs[doc.ID] = textindex.Doc{Instruction: doc.Instruction, Output: doc.Output}
}

func (b *batcher) pending() bool {
	for _, pts := range b.points {
		if len(pts) > 0 {
			return true
		}
	}
	return len(b.docs) > 0
}

// flush upserts every non-empty batch in target order. A failed upsert is
// logged and its points are dropped; only context cancellation stops the run.
func (b *batcher) flush(ctx context.Context, processed int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	flushed := false
	for _, t := range b.d.targets {
		pts := b.points[t.Name]
		if len(pts) == 0 {
			continue
		}
		flushed = true
		stats := b.report.Collections[t.Name]
		log := b.d.log.WithFields(logrus.Fields{
			"collection": t.Name,
			"points":     len(pts),
			"processed":  processed,
		})
		log.Info("upserting batch")
		if err := b.d.store.Upsert(ctx, t.Name, pts, true); err != nil {
			log.WithError(err).Error("upsert failed, dropping batch")
			stats.Lost += len(pts)
		} else {
			stats.Upserted += len(pts)
		}
		b.points[t.Name] = nil
	}
	if flushed {
		b.report.Flushes++
	}

	if b.d.mirror != nil && len(b.docs) > 0 {
		if err := b.d.mirror.IndexDocs(b.docs); err != nil {
			b.d.log.WithError(err).Warn("text index update failed")
		}
		b.docs = map[string]textindex.Doc{}
	}
	return nil
}
