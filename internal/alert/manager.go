package alert

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Alerter is what the adapter escalates through when a protective order
// could not be placed and a position is left exposed.
type Alerter interface {
	Important(event string, fields map[string]string)
}

const defaultAlertQueueSize = 128

// Manager fans alerts out to a notifier from a buffered queue so a slow
// Telegram API never blocks order placement. Overflow is dropped and
// counted rather than waited on.
type Manager struct {
	mode     string
	notifier Notifier
	log      *zap.Logger
	queue    chan alertEvent
	stop     chan struct{}
	done     chan struct{}
	dropped  uint64
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

type alertEvent struct {
	event  string
	fields map[string]string
}

func NewManager(mode string, notifier Notifier, log *zap.Logger) *Manager {
	if notifier == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		mode:     mode,
		notifier: notifier,
		log:      log,
		queue:    make(chan alertEvent, defaultAlertQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.loop()
	go func() {
		m.wg.Wait()
		close(m.done)
	}()
	return m
}

func (m *Manager) Important(event string, fields map[string]string) {
	if m == nil || m.notifier == nil {
		return
	}
	ev := alertEvent{event: event, fields: cloneFields(fields)}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- ev:
	default:
		dropped := atomic.AddUint64(&m.dropped, 1)
		m.log.Warn("alert queue full, dropping",
			zap.String("event", event),
			zap.Uint64("dropped_total", dropped))
	}
}

func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop() {
	defer m.wg.Done()
	for {
		select {
		case ev := <-m.queue:
			m.send(ev)
		case <-m.stop:
			for {
				select {
				case ev := <-m.queue:
					m.send(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) send(ev alertEvent) {
	msg := m.buildMessage(ev.event, ev.fields)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := m.notifier.Notify(ctx, msg); err != nil {
		m.log.Error("alert notify failed", zap.String("event", ev.event), zap.Error(err))
	}
}

func (m *Manager) buildMessage(event string, fields map[string]string) string {
	lines := []string{
		"[futures-adapter] important",
		"time: " + time.Now().UTC().Format(time.RFC3339),
		"mode: " + m.mode,
		"event: " + event,
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+fields[k])
	}
	return strings.Join(lines, "\n")
}

func cloneFields(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
