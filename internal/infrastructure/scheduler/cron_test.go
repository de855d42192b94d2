package scheduler

import (
	"context"
	"testing"
	"time"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/logging"
)

func TestNewCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := NewCronScheduler("every morning", time.UTC, logging.Discard())
	if apperr.KindOf(err) != apperr.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	sched, err := NewCronScheduler("0 8 * * *", loc, logging.Discard())
	if err != nil {
		t.Fatalf("NewCronScheduler error: %v", err)
	}
	if err := sched.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := sched.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("second Start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("second Stop error: %v", err)
	}
}

func TestStopWhenContextCancelled(t *testing.T) {
	t.Parallel()

	sched, err := NewCronScheduler("* * * * *", time.UTC, logging.Discard())
	if err != nil {
		t.Fatalf("NewCronScheduler error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := sched.Start(ctx, func(time.Time) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		sched.mu.Lock()
		stopped := sched.cron == nil
		sched.mu.Unlock()
		if stopped {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scheduler did not stop after context cancellation")
}
