package cli

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestSimpleProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "users")

	progress.Start(4)
	progress.Update(2)
	progress.Finish()

	output := buf.String()
	for _, want := range []string{"Progress:", "(2/4 users)", "(4/4 users)", "100.0%"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %q", want, output)
		}
	}
}

func TestSimpleProgressClampsToTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "").(*SimpleProgress)

	progress.Start(3)
	progress.Update(10)
	if progress.current != 3 {
		t.Errorf("current = %d, want 3", progress.current)
	}
	if !strings.Contains(buf.String(), "items") {
		t.Errorf("default unit not rendered: %q", buf.String())
	}
}

func TestSimpleProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "users")

	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	if strings.Contains(buf.String(), "Progress:") {
		t.Errorf("zero total should not render a bar: %q", buf.String())
	}
}

func TestSimpleProgressError(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "users")

	progress.Start(100)
	progress.Error(errors.New("storage unavailable"))

	if !strings.Contains(buf.String(), "Error: storage unavailable") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSimpleProgressConcurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "users")
	progress.Start(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				progress.Update(int64(start*100 + j))
			}
		}(i)
	}
	wg.Wait()
	progress.Finish()

	if buf.Len() == 0 {
		t.Error("expected some progress output")
	}
}
