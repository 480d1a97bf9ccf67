package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/DreamCats/vecload/internal/dataset"
	"github.com/DreamCats/vecload/internal/embedding"
	"github.com/DreamCats/vecload/internal/logger"
	"github.com/DreamCats/vecload/internal/textindex"
	"github.com/DreamCats/vecload/internal/vectorstore"
)

var defaultTargets = []Target{
	{Name: "jina_embed_1024", Dimension: 1024},
	{Name: "jina_embed_512", Dimension: 512},
	{Name: "jina_embed_128", Dimension: 128},
}

// fakeEncoder returns vectors of length dim whose components encode the text index.
type fakeEncoder struct {
	dim   int
	empty map[string]bool
	drop  int
	err   error
	calls int
	task  embedding.Task
}

func (f *fakeEncoder) Encode(ctx context.Context, texts []string, task embedding.Task) ([][]float32, error) {
	f.calls++
	f.task = task
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if f.empty[text] {
			out = append(out, nil)
			continue
		}
		vec := make([]float32, f.dim)
		for j := range vec {
			vec[j] = float32(i) + float32(j)/10000
		}
		out = append(out, vec)
	}
	return out[:len(out)-f.drop], nil
}

type upsertCall struct {
	collection string
	points     []vectorstore.Point
	wait       bool
}

// recordingStore records upserts and fails those for collections in fail.
type recordingStore struct {
	mu    sync.Mutex
	calls []upsertCall
	fail  map[string]bool
}

func (s *recordingStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return true, nil
}

func (s *recordingStore) CreateCollection(ctx context.Context, col vectorstore.Collection) error {
	return nil
}

func (s *recordingStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point, wait bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[collection] {
		return errors.New("qdrant status 400: bad request")
	}
	cp := append([]vectorstore.Point(nil), points...)
	s.calls = append(s.calls, upsertCall{collection: collection, points: cp, wait: wait})
	return nil
}

func (s *recordingStore) Count(ctx context.Context, collection string) (int, error) {
	return len(s.pointsFor(collection)), nil
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) callsFor(collection string) []upsertCall {
	var out []upsertCall
	for _, c := range s.calls {
		if c.collection == collection {
			out = append(out, c)
		}
	}
	return out
}

func (s *recordingStore) pointsFor(collection string) []vectorstore.Point {
	var out []vectorstore.Point
	for _, c := range s.callsFor(collection) {
		out = append(out, c.points...)
	}
	return out
}

type recordingMirror struct {
	docs map[string]textindex.Doc
	err  error
}

func (m *recordingMirror) IndexDocs(docs map[string]textindex.Doc) error {
	if m.docs == nil {
		m.docs = map[string]textindex.Doc{}
	}
	for id, doc := range docs {
		m.docs[id] = doc
	}
	return m.err
}

func fakeRows(n int) []dataset.Row {
	faker := gofakeit.New(7)
	rows := make([]dataset.Row, n)
	for i := range rows {
		rows[i] = dataset.Row{
			Index:       i,
			Instruction: fmt.Sprintf("%d %s", i, faker.Question()),
			Output:      fmt.Sprintf("%d %s", i, faker.Sentence(10)),
		}
	}
	return rows
}

func newTestDriver(t *testing.T, opts DriverOptions) *Driver {
	t.Helper()
	if opts.Targets == nil {
		opts.Targets = defaultTargets
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	d, err := NewDriver(opts)
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	return d
}

func TestIngestTwoFlushes(t *testing.T) {
	store := &recordingStore{}
	enc := &fakeEncoder{dim: 1024}
	d := newTestDriver(t, DriverOptions{Encoder: enc, Store: store, BatchSize: 100})

	rows := fakeRows(101)
	report, err := d.Ingest(context.Background(), rows)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.Flushes != 2 {
		t.Errorf("Flushes = %d, want 2", report.Flushes)
	}
	if enc.calls != 1 {
		t.Errorf("encode calls = %d, want 1", enc.calls)
	}
	if enc.task != embedding.TaskRetrievalPassage {
		t.Errorf("task = %q", enc.task)
	}

	ids := map[string]bool{}
	for _, target := range defaultTargets {
		calls := store.callsFor(target.Name)
		if len(calls) != 2 || len(calls[0].points) != 100 || len(calls[1].points) != 1 {
			t.Fatalf("%s: upsert sizes wrong: %d calls", target.Name, len(calls))
		}
		stats := report.Collections[target.Name]
		if stats.Upserted != 101 || stats.Projected != 101 || stats.Lost != 0 {
			t.Errorf("%s stats = %+v", target.Name, stats)
		}
		for i, p := range store.pointsFor(target.Name) {
			if !calls[0].wait {
				t.Errorf("%s: upsert without wait", target.Name)
			}
			if len(p.Vector) != target.Dimension {
				t.Fatalf("%s: vector length %d", target.Name, len(p.Vector))
			}
			// Prefix of the full embedding for document i.
			if p.Vector[0] != float32(i) || p.Vector[target.Dimension-1] != float32(i)+float32(target.Dimension-1)/10000 {
				t.Fatalf("%s: point %d is not a prefix", target.Name, i)
			}
			if p.Payload["ground_truth"] != rows[i].Instruction {
				t.Fatalf("%s: payload = %v", target.Name, p.Payload)
			}
			if target.Name == "jina_embed_1024" {
				ids[p.ID] = true
			} else if !ids[p.ID] {
				t.Fatalf("%s: id %s not shared across collections", target.Name, p.ID)
			}
		}
	}
	if len(ids) != 101 {
		t.Errorf("unique ids = %d, want 101", len(ids))
	}
}

func TestIngestFiltersRows(t *testing.T) {
	store := &recordingStore{}
	d := newTestDriver(t, DriverOptions{Encoder: &fakeEncoder{dim: 1024}, Store: store})

	rows := fakeRows(4)
	rows[1].Output = ""
	rows[2].Instruction = "   \t"
	report, err := d.Ingest(context.Background(), rows)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.RowsLoaded != 4 || report.Documents != 2 || report.RowsFiltered != 2 {
		t.Errorf("report = %+v", report)
	}
	for _, p := range store.pointsFor("jina_embed_128") {
		gt := p.Payload["ground_truth"]
		if gt == rows[1].Instruction || gt == rows[2].Instruction {
			t.Errorf("filtered row was stored: %v", gt)
		}
	}
	if n := len(store.pointsFor("jina_embed_128")); n != 2 {
		t.Errorf("points = %d, want 2", n)
	}
}

func TestIngestNoDocuments(t *testing.T) {
	store := &recordingStore{}
	enc := &fakeEncoder{dim: 1024}
	d := newTestDriver(t, DriverOptions{Encoder: enc, Store: store})

	_, err := d.Ingest(context.Background(), []dataset.Row{{Instruction: "q", Output: " "}})
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("error = %v, want ErrNoDocuments", err)
	}
	if enc.calls != 0 || len(store.calls) != 0 {
		t.Errorf("encode calls = %d, upserts = %d", enc.calls, len(store.calls))
	}
}

func TestIngestEncodeFailures(t *testing.T) {
	tests := []struct {
		name string
		enc  *fakeEncoder
		want error
	}{
		{"mismatch", &fakeEncoder{dim: 1024, drop: 1}, ErrEncodeMismatch},
		{"encode error", &fakeEncoder{err: errors.New("model unavailable")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStore{}
			d := newTestDriver(t, DriverOptions{Encoder: tt.enc, Store: store})
			_, err := d.Ingest(context.Background(), fakeRows(5))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if len(store.calls) != 0 {
				t.Errorf("upserts = %d, want 0", len(store.calls))
			}
		})
	}
}

func TestIngestShortEmbedding(t *testing.T) {
	store := &recordingStore{}
	d := newTestDriver(t, DriverOptions{Encoder: &fakeEncoder{dim: 600}, Store: store})

	report, err := d.Ingest(context.Background(), fakeRows(3))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if got := report.Collections["jina_embed_1024"]; got.ShortSkipped != 3 || got.Upserted != 0 {
		t.Errorf("1024 stats = %+v", got)
	}
	if len(store.callsFor("jina_embed_1024")) != 0 {
		t.Error("no upsert expected for the too-short collection")
	}
	for _, name := range []string{"jina_embed_512", "jina_embed_128"} {
		if got := report.Collections[name]; got.Upserted != 3 {
			t.Errorf("%s stats = %+v", name, got)
		}
	}
}

func TestIngestTrailingFlushAfterEmptyEmbedding(t *testing.T) {
	store := &recordingStore{}
	rows := fakeRows(3)
	enc := &fakeEncoder{dim: 1024, empty: map[string]bool{rows[2].Output: true}}
	d := newTestDriver(t, DriverOptions{Encoder: enc, Store: store, BatchSize: 5})

	report, err := d.Ingest(context.Background(), rows)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if report.EmbeddingsSkipped != 1 {
		t.Errorf("EmbeddingsSkipped = %d, want 1", report.EmbeddingsSkipped)
	}
	if report.Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", report.Flushes)
	}
	for _, target := range defaultTargets {
		if n := len(store.pointsFor(target.Name)); n != 2 {
			t.Errorf("%s points = %d, want 2", target.Name, n)
		}
	}
}

func TestIngestUpsertFailure(t *testing.T) {
	for _, strict := range []bool{false, true} {
		t.Run(fmt.Sprintf("strict=%v", strict), func(t *testing.T) {
			store := &recordingStore{fail: map[string]bool{"jina_embed_512": true}}
			d := newTestDriver(t, DriverOptions{Encoder: &fakeEncoder{dim: 1024}, Store: store, BatchSize: 2, Strict: strict})

			report, err := d.Ingest(context.Background(), fakeRows(5))
			if strict {
				if !errors.Is(err, ErrPointsLost) {
					t.Fatalf("error = %v, want ErrPointsLost", err)
				}
			} else if err != nil {
				t.Fatalf("Ingest() error = %v", err)
			}
			if report.Lost() != 5 || report.Collections["jina_embed_512"].Lost != 5 {
				t.Errorf("lost = %d", report.Lost())
			}
			// Other collections keep going after the failure.
			if n := len(store.pointsFor("jina_embed_128")); n != 5 {
				t.Errorf("128 points = %d, want 5", n)
			}
			if report.Flushes != 3 {
				t.Errorf("Flushes = %d, want 3", report.Flushes)
			}
		})
	}
}

func TestIngestMirror(t *testing.T) {
	mirror := &recordingMirror{err: errors.New("disk full")}
	store := &recordingStore{}
	d := newTestDriver(t, DriverOptions{Encoder: &fakeEncoder{dim: 1024}, Store: store, Mirror: mirror, BatchSize: 2})

	rows := fakeRows(3)
	if _, err := d.Ingest(context.Background(), rows); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(mirror.docs) != 3 {
		t.Fatalf("mirrored docs = %d, want 3", len(mirror.docs))
	}
	for _, p := range store.pointsFor("jina_embed_128") {
		doc, ok := mirror.docs[p.ID]
		if !ok || doc.Instruction != p.Payload["ground_truth"] {
			t.Errorf("mirror missing point %s", p.ID)
		}
	}
}

type staticSource struct {
	rows []dataset.Row
	err  error
}

func (s staticSource) Load(ctx context.Context) ([]dataset.Row, error) {
	return s.rows, s.err
}

func TestRun(t *testing.T) {
	store := &recordingStore{}
	d := newTestDriver(t, DriverOptions{
		Source:  staticSource{rows: fakeRows(4)},
		Encoder: &fakeEncoder{dim: 1024},
		Store:   store,
	})
	report, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Documents != 4 {
		t.Errorf("Documents = %d", report.Documents)
	}

	var out bytes.Buffer
	report.Print(&out)
	if !strings.Contains(out.String(), "jina_embed_512") {
		t.Errorf("report output missing collection:\n%s", out.String())
	}

	d = newTestDriver(t, DriverOptions{
		Source:  staticSource{err: errors.New("hub unreachable")},
		Encoder: &fakeEncoder{dim: 1024},
		Store:   store,
	})
	if _, err := d.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "load dataset") {
		t.Errorf("Run() error = %v", err)
	}
}

func TestNewDriverValidation(t *testing.T) {
	enc := &fakeEncoder{dim: 8}
	store := &recordingStore{}
	tests := []struct {
		name string
		opts DriverOptions
	}{
		{"no encoder", DriverOptions{Store: store, Targets: defaultTargets}},
		{"no store", DriverOptions{Encoder: enc, Targets: defaultTargets}},
		{"no targets", DriverOptions{Encoder: enc, Store: store, Targets: []Target{}}},
		{"bad dimension", DriverOptions{Encoder: enc, Store: store, Targets: []Target{{Name: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDriver(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
