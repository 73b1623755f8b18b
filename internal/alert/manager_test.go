package alert

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureNotifier) Notify(ctx context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *captureNotifier) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func TestManagerDeliversImportantEvents(t *testing.T) {
	notifier := &captureNotifier{}
	m := NewManager("dry_run", notifier, nil)

	m.Important("position_unprotected", map[string]string{
		"symbol": "BTCUSDT",
		"reason": "insufficient funds",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	msgs := notifier.messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0], "event: position_unprotected") {
		t.Fatalf("message missing event line: %q", msgs[0])
	}
	if !strings.Contains(msgs[0], "symbol: BTCUSDT") {
		t.Fatalf("message missing field line: %q", msgs[0])
	}
}

func TestManagerNilNotifier(t *testing.T) {
	if m := NewManager("live", nil, nil); m != nil {
		t.Fatal("NewManager with nil notifier should return nil")
	}
	var m *Manager
	m.Important("ignored", nil)
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("nil Close() error = %v", err)
	}
}
