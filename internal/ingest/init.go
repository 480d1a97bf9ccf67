package ingest

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/vectorstore"
)

// InitCollections makes sure every target collection exists. Existing
// collections are left untouched, including their dimension.
func InitCollections(ctx context.Context, store vectorstore.Store, targets []Target, distance vectorstore.Distance, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.New()
	}
	for _, t := range targets {
		created, err := vectorstore.EnsureCollection(ctx, store, vectorstore.Collection{
			Name:      t.Name,
			Dimension: t.Dimension,
			Distance:  distance,
		})
		if err != nil {
			return err
		}
		entry := log.WithFields(logrus.Fields{"collection": t.Name, "dimension": t.Dimension})
		if created {
			entry.Info("collection created")
		} else {
			entry.Info("collection already exists")
		}
	}
	return nil
}
