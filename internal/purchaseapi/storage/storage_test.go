// internal/purchaseapi/storage/storage_test.go
package storage

import (
	"testing"

	"github.com/YaganovValera/purchase-pipeline/internal/event"
)

func TestFromEvent(t *testing.T) {
	evt := &event.PurchaseCreated{
		EventID:      "e-1",
		EventType:    event.TypePurchaseCreated,
		EventVersion: 1,
		Timestamp:    "2026-08-29T10:00:00Z",
		UserID:       "u-1",
		ItemID:       "i-1",
		Quantity:     4,
	}

	doc := FromEvent(evt)

	if doc.EventID != evt.EventID {
		t.Errorf("EventID = %q; want %q", doc.EventID, evt.EventID)
	}
	if doc.UserID != evt.UserID || doc.ItemID != evt.ItemID || doc.Quantity != evt.Quantity {
		t.Errorf("payload fields mismatch: %+v", doc)
	}
	if doc.Timestamp != evt.Timestamp {
		t.Errorf("Timestamp = %q; want %q", doc.Timestamp, evt.Timestamp)
	}
}

func TestOutcomeString(t *testing.T) {
	cases := []struct {
		o    Outcome
		want string
	}{
		{Inserted, "inserted"},
		{AlreadyPresent, "already_present"},
		{Failed, "failed"},
		{Outcome(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.o.String(); got != c.want {
			t.Errorf("Outcome(%d).String() = %q; want %q", c.o, got, c.want)
		}
	}
}
