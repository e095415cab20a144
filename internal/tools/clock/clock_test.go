package clock

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestClockDefaultsToRFC3339(t *testing.T) {
	fixed := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	tool := &Tool{now: func() time.Time { return fixed }}

	res, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Result != fixed.Format(time.RFC3339) {
		t.Fatalf("expected %s, got %s", fixed.Format(time.RFC3339), res.Result)
	}
}

func TestClockHonorsCustomLayout(t *testing.T) {
	fixed := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	tool := &Tool{now: func() time.Time { return fixed }}

	params, _ := json.Marshal(map[string]string{"layout": "2006-01-02"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Result != "2026-07-30" {
		t.Fatalf("expected 2026-07-30, got %s", res.Result)
	}
}

func TestClockRejectsInvalidParams(t *testing.T) {
	tool := New()
	res, err := tool.Execute(context.Background(), json.RawMessage(`not json`))
	if err != nil {
		t.Fatalf("Execute should not return a Go error: %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected an error result for invalid params")
	}
}

func TestClockNameAndSchema(t *testing.T) {
	tool := New()
	if tool.Name() != "clock" {
		t.Fatalf("unexpected name: %s", tool.Name())
	}
	if len(tool.Schema()) == 0 {
		t.Fatal("expected a non-empty schema")
	}
}
