package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediafetch/internal/worker"
)

func waitForTerminal(t *testing.T, st *Store, id string) Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if tk, ok := st.Get(id); ok && tk.Status.Terminal() {
			return tk
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", id)
	return Task{}
}

func TestDispatcher_SubmitValidation(t *testing.T) {
	st := NewStore(10)
	d := NewDispatcher(st, &fakeEngine{}, t.TempDir())

	cases := []struct{ url, format string }{
		{"", "mp4"},
		{"https://example.com/v", ""},
		{"", ""},
		{"   ", "mp4"},
	}
	for _, tc := range cases {
		if _, err := d.Submit(tc.url, tc.format); !errors.Is(err, ErrValidation) {
			t.Errorf("Submit(%q, %q): expected ErrValidation, got %v", tc.url, tc.format, err)
		}
	}
	if st.Len() != 0 {
		t.Errorf("rejected submits must create no tasks, store has %d", st.Len())
	}
}

func TestDispatcher_SubmitSeedsPendingAndRuns(t *testing.T) {
	st := NewStore(10)
	started := make(chan struct{})
	eng := &fakeEngine{
		download: func(req worker.Request, hook worker.Hook) error {
			<-started
			hook(worker.Event{Kind: worker.EventFinished, Filename: "clip.mp4"})
			return nil
		},
	}
	d := NewDispatcher(st, eng, t.TempDir())

	id, err := d.Submit("https://example.com/v", "best_video")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected a task id")
	}
	// Submit returns before the runner finishes.
	if tk, ok := st.Get(id); !ok || tk.Status.Terminal() {
		t.Fatalf("expected live non-terminal task right after submit, got %v %v", tk.Status, ok)
	}
	close(started)

	tk := waitForTerminal(t, st, id)
	if tk.Status != StatusFinished {
		t.Errorf("expected finished, got %s (%v)", tk.Status, tk.ErrorMessage)
	}
}

func TestDispatcher_IdentifiersAreUnique(t *testing.T) {
	st := NewStore(10)
	d := NewDispatcher(st, &fakeEngine{}, t.TempDir())

	ids := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := d.Submit("https://example.com/v", "mp3")
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if ids[id] {
			t.Fatalf("identifier %s reused", id)
		}
		ids[id] = true
	}
	if st.Len() != 50 {
		t.Errorf("expected 50 tasks, got %d", st.Len())
	}
}

func TestDispatcher_StopAccepting(t *testing.T) {
	st := NewStore(10)
	d := NewDispatcher(st, &fakeEngine{}, t.TempDir())

	d.StopAccepting()
	if _, err := d.Submit("https://example.com/v", "mp3"); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("expected ErrShuttingDown, got %v", err)
	}
	if st.Len() != 0 {
		t.Errorf("expected no tasks, got %d", st.Len())
	}
}

func TestDispatcher_DrainWaitsForRunners(t *testing.T) {
	st := NewStore(10)
	release := make(chan struct{})
	eng := &fakeEngine{
		download: func(req worker.Request, hook worker.Hook) error {
			<-release
			hook(worker.Event{Kind: worker.EventFinished, Filename: "a.mp4"})
			return nil
		},
	}
	d := NewDispatcher(st, eng, t.TempDir())
	id, err := d.Submit("https://example.com/v", "mp3")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Drain(ctx); err == nil {
		t.Fatal("expected drain to time out while the runner is blocked")
	}

	close(release)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := d.Drain(ctx2); err != nil {
		t.Fatalf("drain after release: %v", err)
	}
	if tk, _ := st.Get(id); tk.Status != StatusFinished {
		t.Errorf("expected finished after drain, got %s", tk.Status)
	}
}
