package progress

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer written from the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func TestNewDisabled(t *testing.T) {
	r := New(false, nil, "x")
	if _, ok := r.(Nop); !ok {
		t.Fatalf("New(false) = %T, want Nop", r)
	}
	r.Start(10)
	r.Increment()
	r.Finish()
}

func TestBarWrites(t *testing.T) {
	var out syncBuffer
	r := New(true, &out, "projecting")
	r.Start(3)
	for i := 0; i < 3; i++ {
		r.Increment()
	}
	r.Finish()
	if out.Len() == 0 {
		t.Error("expected progress output")
	}
}

func TestBarZeroTotal(t *testing.T) {
	var out syncBuffer
	r := New(true, &out, "empty")
	r.Start(0)
	r.Increment()
	r.Finish()
	if out.Len() != 0 {
		t.Errorf("expected no output for zero total")
	}
}

func TestEnabledModes(t *testing.T) {
	if !Enabled("always") {
		t.Error("always should enable progress")
	}
	if Enabled("never") {
		t.Error("never should disable progress")
	}
}

func TestStartSpinnerStop(t *testing.T) {
	var out syncBuffer
	stop := StartSpinner(true, &out, "encoding")
	time.Sleep(300 * time.Millisecond)
	stop()
	stop()
	if out.Len() == 0 {
		t.Error("expected spinner output")
	}

	StartSpinner(false, nil, "noop")()
}
