package tracker

import (
	"testing"
	"time"
)

func TestStatusCacheRoundTrip(t *testing.T) {
	c := NewStatusCache()

	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache should miss")
	}

	rec := StatusRecord{Status: StatusPending, Message: "processing", Timestamp: time.Now(), Source: SourcePush}
	c.Set("R1", rec)

	got, ok := c.Get("R1")
	if !ok {
		t.Fatal("expected a hit for R1")
	}
	if got.Status != rec.Status || got.Message != rec.Message || got.Source != rec.Source {
		t.Errorf("cached record mutated: got %+v want %+v", got, rec)
	}

	c.Delete("R1")
	if _, ok := c.Get("R1"); ok {
		t.Error("deleted entry should miss")
	}
	// Deleting again is fine.
	c.Delete("R1")
}

func TestStatusCacheOverwrite(t *testing.T) {
	c := NewStatusCache()
	c.Set("R1", StatusRecord{Status: StatusPending})
	c.Set("R1", StatusRecord{Status: StatusSuccessful})

	got, _ := c.Get("R1")
	if got.Status != StatusSuccessful {
		t.Errorf("expected the later write to win, got %s", got.Status)
	}
}
