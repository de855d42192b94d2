package console

import (
	"context"
	"io"
	"log"
	"os"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
	"DailyBriefing/pkg/logger"
)

// Notifier prints messages locally. It is always available and is the fallback channel.
type Notifier struct {
	out *log.Logger
}

var _ ports.Channel = (*Notifier)(nil)

// NewNotifier writes to w, or stdout when w is nil.
func NewNotifier(w io.Writer) *Notifier {
	if w == nil {
		w = os.Stdout
	}
	return &Notifier{out: logger.NewWithWriter(w, "notify")}
}

func (n *Notifier) Name() domain.Channel {
	return domain.ChannelConsole
}

func (n *Notifier) Available() bool {
	return true
}

func (n *Notifier) Deliver(_ context.Context, message string) (string, error) {
	n.out.Printf("=> %s", message)
	return "", nil
}
