package notify

import (
	"context"
	"fmt"
	"log/slog"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Sender walks an ordered chain of channels. The first available channel
// that accepts the message wins; the last one is the fallback and must
// always be available.
type Sender struct {
	chain  []ports.Channel
	logger *slog.Logger
}

var _ ports.Sender = (*Sender)(nil)

// NewSender builds the chain in priority order, e.g. telegram then console.
func NewSender(logger *slog.Logger, chain ...ports.Channel) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{chain: chain, logger: logger.With("component", "notify")}
}

// Send delivers message exactly once. An explicit channel starts the walk at
// that channel; an empty channel starts at the head of the chain.
func (s *Sender) Send(ctx context.Context, message string, channel domain.Channel) (domain.Delivery, error) {
	candidates, err := s.candidates(channel)
	if err != nil {
		return domain.Delivery{}, err
	}

	var lastErr error
	for i, ch := range candidates {
		if !ch.Available() {
			s.logger.Debug("channel unavailable, skipping", "channel", ch.Name())
			continue
		}
		id, err := ch.Deliver(ctx, message)
		if err == nil {
			return domain.Delivery{Delivered: true, Channel: ch.Name(), ID: id}, nil
		}
		lastErr = err
		if i < len(candidates)-1 {
			s.logger.Warn("delivery failed, falling back", "channel", ch.Name(), "error", err)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no channel available")
	}
	return domain.Delivery{}, apperr.Wrap(lastErr, apperr.KindDelivery, "delivery_failed")
}

func (s *Sender) candidates(channel domain.Channel) ([]ports.Channel, error) {
	if len(s.chain) == 0 {
		return nil, apperr.Configuration("no_channels", "notification chain is empty")
	}
	if channel == "" {
		return s.chain, nil
	}
	for i, ch := range s.chain {
		if ch.Name() == channel {
			return s.chain[i:], nil
		}
	}
	return nil, apperr.Validation("unknown_channel", "unknown channel %q", channel)
}
