package store

import (
	"encoding/json"
	"testing"
)

func TestAuditLogAppendAndReadBack(t *testing.T) {
	log, err := NewAuditLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewAuditLog() error = %v", err)
	}

	if err := log.Record("create_stoploss_order", "BTCUSDT", map[string]string{"orderId": "42"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := log.Record("dry_run_order", "ETHUSDT", map[string]string{"orderId": "dry-1"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	records, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Event != "create_stoploss_order" || records[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	var payload map[string]string
	if err := json.Unmarshal(records[1].Payload, &payload); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if payload["orderId"] != "dry-1" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestAuditLogNilReceiverIsNoop(t *testing.T) {
	var log *AuditLog
	if err := log.Record("x", "y", nil); err != nil {
		t.Fatalf("nil Record() error = %v", err)
	}
	if recs, err := log.ReadAll(); err != nil || recs != nil {
		t.Fatalf("nil ReadAll() = %v, %v", recs, err)
	}
}

func TestAuditLogReadMissingFile(t *testing.T) {
	log, err := NewAuditLog(t.TempDir())
	if err != nil {
		t.Fatalf("NewAuditLog() error = %v", err)
	}
	records, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if records != nil {
		t.Fatalf("got %v, want nil", records)
	}
}
