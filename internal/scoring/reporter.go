package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

const defaultReportTimeout = 10 * time.Second

// Reporter publishes scores in the background. Failures are logged and never reach the run.
type Reporter struct {
	sender  ports.Sender
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

var _ ports.ScoreReporter = (*Reporter)(nil)

func NewReporter(sender ports.Sender, timeout time.Duration, logger *slog.Logger) *Reporter {
	if timeout <= 0 {
		timeout = defaultReportTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{sender: sender, timeout: timeout, logger: logger.With("component", "score-reporter")}
}

// FormatScore renders the notification text, e.g. "📊 Score: 85%".
func FormatScore(score domain.QualityScore) string {
	return fmt.Sprintf("📊 Score: %d%%", score.Percent())
}

// Dispatch returns immediately; the send happens on its own goroutine.
func (r *Reporter) Dispatch(score domain.QualityScore, channel domain.Channel) {
	if r == nil || r.sender == nil {
		return
	}
	text := FormatScore(score)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("score report panicked", "panic", rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		delivery, err := r.sender.Send(ctx, text, channel)
		if err != nil {
			r.logger.Warn("score report failed", "error", err, "score", score.Percent())
			return
		}
		r.logger.Info("score reported", "channel", delivery.Channel, "score", score.Percent())
	}()
}

// Wait blocks until every dispatched report has finished.
func (r *Reporter) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
