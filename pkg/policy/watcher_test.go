package policy

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CollapsesBursts(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	var calls int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { atomic.AddInt32(&calls, 1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls int32
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	d.Stop()
	d.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("callback ran %d times after Stop, want 0", got)
	}
}

func TestWatcher_ResyncsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "policies: []\n")
	store := newTestStore(t)
	source := NewSource(path, store, "", nil)

	w, err := NewWatcher(source, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	synced := make(chan *SyncResult, 4)
	w.OnSync = func(r *SyncResult, err error) {
		if err != nil {
			return
		}
		select {
		case synced <- r:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)
	defer w.Stop()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, policiesYAML)

	select {
	case r := <-synced:
		if r.Created != 2 {
			t.Errorf("Created = %d, want 2", r.Created)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for policy resync")
	}
}
