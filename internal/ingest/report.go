package ingest

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

type CollectionStats struct {
	Projected    int
	Upserted     int
	Lost         int
	ShortSkipped int
}

// Report summarises one ingestion run.
type Report struct {
	RowsLoaded        int
	Documents         int
	RowsFiltered      int
	EmbeddingsSkipped int
	Flushes           int
	Elapsed           time.Duration

	// Targets keeps collection order for printing.
	Targets     []Target
	Collections map[string]*CollectionStats
}

func newReport(targets []Target) *Report {
	r := &Report{
		Targets:     targets,
		Collections: make(map[string]*CollectionStats, len(targets)),
	}
	for _, t := range targets {
		r.Collections[t.Name] = &CollectionStats{}
	}
	return r
}

// Lost is the number of points dropped by failed upserts across all collections.
func (r *Report) Lost() int {
	n := 0
	for _, s := range r.Collections {
		n += s.Lost
	}
	return n
}

func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Rows loaded:        %d\n", r.RowsLoaded)
	fmt.Fprintf(w, "Documents:          %d (filtered %d)\n", r.Documents, r.RowsFiltered)
	fmt.Fprintf(w, "Empty embeddings:   %d\n", r.EmbeddingsSkipped)
	fmt.Fprintf(w, "Flushes:            %d\n", r.Flushes)
	if r.Elapsed > 0 {
		fmt.Fprintf(w, "Elapsed:            %s\n", r.Elapsed.Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLLECTION\tDIM\tPROJECTED\tUPSERTED\tLOST\tTOO SHORT")
	for _, t := range r.Targets {
		s := r.Collections[t.Name]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", t.Name, t.Dimension, s.Projected, s.Upserted, s.Lost, s.ShortSkipped)
	}
	_ = tw.Flush()
}
