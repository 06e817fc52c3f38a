package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"skillgap/logger"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_IntervalRuns(t *testing.T) {
	s := New(Config{}, logger.Nop())
	var runs atomic.Int32
	if err := s.Add(Job{Name: "rescan", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return runs.Load() >= 2 })

	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0].Name != "rescan" || jobs[0].Runs < 2 {
		t.Errorf("unexpected job status %+v", jobs)
	}
}

func TestScheduler_TriggerOnlyJob(t *testing.T) {
	s := New(Config{}, logger.Nop())
	done := make(chan struct{}, 4)
	s.Add(Job{Name: "refresh", Run: func(context.Context) error {
		done <- struct{}{}
		return nil
	}})
	s.Start()
	defer s.Stop()

	select {
	case <-done:
		t.Fatal("trigger-only job ran without a trigger")
	case <-time.After(30 * time.Millisecond):
	}

	if err := s.Trigger("refresh"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered job did not run")
	}

	if err := s.Trigger("nope"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestScheduler_RunOnStartAndFailures(t *testing.T) {
	s := New(Config{RunOnStart: true}, logger.Nop())
	s.Add(Job{Name: "boom", Run: func(context.Context) error { return errors.New("remote down") }})
	s.Add(Job{Name: "panics", Run: func(context.Context) error { panic("bad") }})
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.Stats()["failed"].(int64) == 2 })

	for _, js := range s.Jobs() {
		if js.Status != StatusFailed || js.Failures != 1 {
			t.Errorf("expected one failure for %s, got %+v", js.Name, js)
		}
	}
	jobs := s.Jobs()
	if jobs[0].LastError != "remote down" || jobs[1].LastError != "panic: bad" {
		t.Errorf("unexpected errors %q / %q", jobs[0].LastError, jobs[1].LastError)
	}
}

func TestScheduler_StopCancelsRun(t *testing.T) {
	s := New(Config{RunOnStart: true}, logger.Nop())
	started := make(chan struct{})
	var cancelled atomic.Bool
	s.Add(Job{Name: "slow", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}})
	s.Start()
	<-started
	s.Stop()

	if !cancelled.Load() {
		t.Error("expected in-flight run to observe cancellation")
	}
	if err := s.Trigger("slow"); err == nil {
		t.Error("expected trigger after stop to fail")
	}
	s.Stop()
}

func TestScheduler_AddValidation(t *testing.T) {
	s := New(Config{}, logger.Nop())
	noop := func(context.Context) error { return nil }

	if err := s.Add(Job{Name: "", Run: noop}); err == nil {
		t.Error("expected error for unnamed job")
	}
	if err := s.Add(Job{Name: "a", Interval: -time.Second, Run: noop}); err == nil {
		t.Error("expected error for negative interval")
	}
	if err := s.Add(Job{Name: "a", Run: noop}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(Job{Name: "a", Run: noop}); err == nil {
		t.Error("expected duplicate error")
	}
	s.Start()
	defer s.Stop()
	if err := s.Add(Job{Name: "b", Run: noop}); err == nil {
		t.Error("expected error adding after start")
	}
}
