package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestDeliverWritesPrefixedLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewNotifier(&buf)
	if !n.Available() {
		t.Fatal("console must always be available")
	}
	if _, err := n.Deliver(context.Background(), "Nenhum compromisso para hoje."); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "[notify] ") || !strings.Contains(out, "=> Nenhum compromisso para hoje.") {
		t.Fatalf("unexpected output: %q", out)
	}
}
