package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLog appends venue interactions to a JSONL file so raw responses and
// dry-run orders survive the process.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

type AuditRecord struct {
	Time    time.Time       `json:"time"`
	Event   string          `json:"event"`
	Symbol  string          `json:"symbol,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewAuditLog(dir string) (*AuditLog, error) {
	if dir == "" {
		return nil, errors.New("audit dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &AuditLog{path: filepath.Join(dir, "audit.jsonl")}, nil
}

// Record marshals payload and appends one line. A nil receiver is a no-op so
// callers do not have to guard the optional audit sink.
func (a *AuditLog) Record(event, symbol string, payload any) error {
	if a == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	line, err := json.Marshal(AuditRecord{
		Time:    time.Now().UTC(),
		Event:   event,
		Symbol:  symbol,
		Payload: raw,
	})
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (a *AuditLog) ReadAll() ([]AuditRecord, error) {
	if a == nil {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var records []AuditRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
