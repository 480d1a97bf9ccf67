package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeClient embeds a text as [len(text), index-in-batch].
type fakeClient struct {
	calls    int32
	maxBatch int32
	fail     string
	short    bool

	mu    sync.Mutex
	tasks []Task
}

func (f *fakeClient) EmbedBatch(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	for {
		cur := atomic.LoadInt32(&f.maxBatch)
		if int32(len(texts)) <= cur || atomic.CompareAndSwapInt32(&f.maxBatch, cur, int32(len(texts))) {
			break
		}
	}
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if f.fail != "" && text == f.fail {
			return nil, errors.New("provider failure")
		}
		out = append(out, []float32{float32(len(text)), 1})
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeClient) Dimensions() int { return 2 }
func (f *fakeClient) Model() string   { return "fake" }

func TestServiceEncodePreservesOrder(t *testing.T) {
	texts := make([]string, 23)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}
	client := &fakeClient{}
	svc := NewServiceWithClient(client, 4, 3, nil)

	got, err := svc.Encode(context.Background(), texts, TaskRetrievalPassage)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("len = %d, want %d", len(got), len(texts))
	}
	for i, vec := range got {
		if vec[0] != float32(i+1) {
			t.Errorf("result[%d][0] = %v, want %v", i, vec[0], i+1)
		}
	}
	if client.calls != 6 {
		t.Errorf("provider calls = %d, want 6", client.calls)
	}
	if client.maxBatch > 4 {
		t.Errorf("max batch = %d, want <= 4", client.maxBatch)
	}
	for _, task := range client.tasks {
		if task != TaskRetrievalPassage {
			t.Errorf("task = %q", task)
		}
	}
}

func TestServiceEncodeSkipsEmptyTexts(t *testing.T) {
	client := &fakeClient{}
	svc := NewServiceWithClient(client, 10, 1, nil)

	got, err := svc.Encode(context.Background(), []string{"ab", "", "abcd"}, TaskTextMatching)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[1] != nil {
		t.Errorf("empty text should have nil vector, got %v", got[1])
	}
	if got[0][0] != 2 || got[2][0] != 4 {
		t.Errorf("got %v", got)
	}

	got, err = svc.Encode(context.Background(), nil, TaskTextMatching)
	if err != nil || len(got) != 0 {
		t.Errorf("Encode(nil) = %v, %v", got, err)
	}
}

func TestServiceEncodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{"provider failure", &fakeClient{fail: "bad"}},
		{"short batch", &fakeClient{short: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewServiceWithClient(tt.client, 2, 2, nil)
			texts := []string{"a", "bad", "c", "d", "e"}
			if _, err := svc.Encode(context.Background(), texts, TaskTextMatching); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	vec := []float32{1, 2, 3, 4}
	got := Truncate(vec, 2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Truncate() = %v", got)
	}
	if got := Truncate(vec, 4); len(got) != 4 {
		t.Errorf("Truncate() full = %v", got)
	}
}

func TestTruncatePanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for dimension larger than vector")
		}
	}()

	Truncate([]float32{1, 2}, 3)
}

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"parallel", []float32{1, 2, 3}, []float32{1, 2, 3}, 14},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -2},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Dot(tt.a, tt.b)
			diff := result - tt.expected
			if diff < 0 {
				diff = -diff
			}
			if diff > 0.001 {
				t.Errorf("Dot() = %v, want %v (diff: %v)", result, tt.expected, diff)
			}
		})
	}
}

func TestDotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for dimension mismatch")
		}
	}()

	Dot([]float32{1, 2}, []float32{1, 2, 3})
}

// mapEncoder returns fixed vectors per text.
type mapEncoder struct {
	vectors map[string][]float32
	tasks   []Task
}

func (m *mapEncoder) Encode(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	m.tasks = append(m.tasks, task)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := m.vectors[text]
		if !ok {
			return nil, fmt.Errorf("unknown text %q", text)
		}
		out[i] = vec
	}
	return out, nil
}

func TestFindSimilarTexts(t *testing.T) {
	enc := &mapEncoder{vectors: map[string][]float32{
		"q": {1, 0, 100},
		"a": {0.2, 0, -100},
		"b": {0.9, 0, 0},
		"c": {0.5, 0, 0},
		"d": {0.5, 1, 0},
	}}

	res, err := FindSimilarTexts(context.Background(), enc, "q", []string{"a", "b", "c", "d"}, SimilarityOptions{MatryoshkaDim: 2})
	if err != nil {
		t.Fatalf("FindSimilarTexts() error = %v", err)
	}
	wantIdx := []int{1, 2, 3, 0}
	for i, idx := range wantIdx {
		if res.Indices[i] != idx {
			t.Fatalf("Indices = %v, want %v", res.Indices, wantIdx)
		}
	}
	for i := 1; i < len(res.Scores); i++ {
		if res.Scores[i] > res.Scores[i-1] {
			t.Errorf("scores not descending: %v", res.Scores)
		}
	}
	if res.Texts[0] != "b" {
		t.Errorf("Texts[0] = %q", res.Texts[0])
	}
	if len(enc.tasks) != 2 || enc.tasks[0] != TaskRetrievalQuery || enc.tasks[1] != TaskRetrievalPassage {
		t.Errorf("tasks = %v", enc.tasks)
	}
}

func TestFindSimilarTextsTopKAndShortVectors(t *testing.T) {
	enc := &mapEncoder{vectors: map[string][]float32{
		"q": {1, 1},
		"a": {1, 0},
		"b": {1, 1},
		"c": {0, 0},
	}}

	// MatryoshkaDim above the vector length uses the whole vector.
	res, err := FindSimilarTexts(context.Background(), enc, "q", []string{"a", "b", "c"}, SimilarityOptions{TopK: 2})
	if err != nil {
		t.Fatalf("FindSimilarTexts() error = %v", err)
	}
	if len(res.Indices) != 2 || res.Indices[0] != 1 || res.Indices[1] != 0 {
		t.Errorf("Indices = %v", res.Indices)
	}
	if res.Scores[0] != 2 {
		t.Errorf("top score = %v, want 2", res.Scores[0])
	}
}

func TestFindSimilarTextsEmpty(t *testing.T) {
	res, err := FindSimilarTexts(context.Background(), &mapEncoder{}, "q", nil, SimilarityOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Indices) != 0 {
		t.Errorf("expected empty result, got %v", res)
	}
}

func TestFindSimilarTextsStableTies(t *testing.T) {
	const n = 40
	vectors := map[string][]float32{"q": {1, 1}}
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("t%02d", i)
		vectors[texts[i]] = []float32{1, 0}
	}
	// Two winners in the middle; every other text ties on score 1.
	vectors["t07"] = []float32{1, 1}
	vectors["t31"] = []float32{1, 1}

	res, err := FindSimilarTexts(context.Background(), &mapEncoder{vectors: vectors}, "q", texts, SimilarityOptions{})
	if err != nil {
		t.Fatalf("FindSimilarTexts() error = %v", err)
	}
	want := []int{7, 31}
	for i := 0; i < n; i++ {
		if i != 7 && i != 31 {
			want = append(want, i)
		}
	}
	if len(res.Indices) != len(want) {
		t.Fatalf("got %d results, want %d", len(res.Indices), len(want))
	}
	for i := range want {
		if res.Indices[i] != want[i] {
			t.Fatalf("Indices = %v, want %v", res.Indices, want)
		}
	}
}

func TestFindSimilarTextsRejectsBlankText(t *testing.T) {
	enc := &mapEncoder{vectors: map[string][]float32{"q": {1}, "a": {1}}}

	_, err := FindSimilarTexts(context.Background(), enc, "q", []string{"a", "  "}, SimilarityOptions{})
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("error = %v, want ErrEmptyText", err)
	}
	if !strings.Contains(err.Error(), "text 1") {
		t.Errorf("error = %v, want the offending index", err)
	}
	if len(enc.tasks) != 0 {
		t.Errorf("encoder called %d times", len(enc.tasks))
	}

	if _, err := FindSimilarTexts(context.Background(), enc, "", []string{"a"}, SimilarityOptions{}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank query error = %v, want ErrEmptyText", err)
	}
}
