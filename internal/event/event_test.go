// internal/event/event_test.go
package event

import (
	"errors"
	"strings"
	"testing"
)

func validEvent() *PurchaseCreated {
	return &PurchaseCreated{
		EventID:      "e-1",
		EventType:    TypePurchaseCreated,
		EventVersion: 1,
		Timestamp:    "2026-08-29T10:00:00Z",
		UserID:       "u-1",
		ItemID:       "i-1",
		Quantity:     2,
	}
}

// Проверяем Decode на разных формах входа.
func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"eventId":"e1","eventType":"PurchaseCreated","eventVersion":1,"timestamp":"t","userId":"u","itemId":"i","quantity":1}`, false},
		{"notJSON", `{{{`, true},
		{"wrongFieldType", `{"eventId":"e1","quantity":"three"}`, true},
		{"emptyObject", `{}`, false},
		{"unknownFields", `{"eventId":"e1","userId":"u","extra":"ignored"}`, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Decode([]byte(c.raw))
			if (err != nil) != c.wantErr {
				t.Errorf("Decode() error = %v; wantErr=%v", err, c.wantErr)
			}
		})
	}
}

// Отсутствующие eventVersion/eventType дополняются дефолтами.
func TestDecode_Defaults(t *testing.T) {
	evt, err := Decode([]byte(`{"eventId":"e1","timestamp":"t","userId":"u","itemId":"i","quantity":1}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if evt.EventVersion != SchemaVersion {
		t.Errorf("EventVersion = %d; want %d", evt.EventVersion, SchemaVersion)
	}
	if evt.EventType != TypePurchaseCreated {
		t.Errorf("EventType = %q; want %q", evt.EventType, TypePurchaseCreated)
	}
	if err := evt.Validate(); err != nil {
		t.Errorf("defaulted event must validate, got %v", err)
	}
}

// Validate собирает все нарушенные поля, а не первое.
func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*PurchaseCreated)
		wantBad []string
	}{
		{"valid", func(e *PurchaseCreated) {}, nil},
		{"noEventID", func(e *PurchaseCreated) { e.EventID = "" }, []string{"eventId"}},
		{"wrongType", func(e *PurchaseCreated) { e.EventType = "OrderShipped" }, []string{"eventType"}},
		{"zeroVersion", func(e *PurchaseCreated) { e.EventVersion = 0 }, []string{"eventVersion"}},
		{"noTimestamp", func(e *PurchaseCreated) { e.Timestamp = "" }, []string{"timestamp"}},
		{"noUser", func(e *PurchaseCreated) { e.UserID = "" }, []string{"userId"}},
		{"noItem", func(e *PurchaseCreated) { e.ItemID = "" }, []string{"itemId"}},
		{"zeroQuantity", func(e *PurchaseCreated) { e.Quantity = 0 }, []string{"quantity"}},
		{"negativeQuantity", func(e *PurchaseCreated) { e.Quantity = -5 }, []string{"quantity"}},
		{
			"multiple",
			func(e *PurchaseCreated) { e.UserID = ""; e.ItemID = ""; e.Quantity = 0 },
			[]string{"userId", "itemId", "quantity"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			evt := validEvent()
			c.mutate(evt)
			err := evt.Validate()
			if c.wantBad == nil {
				if err != nil {
					t.Fatalf("Validate() = %v; want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v; want *ValidationError", err)
			}
			if len(verr.Fields) != len(c.wantBad) {
				t.Fatalf("Fields = %v; want %v", verr.Fields, c.wantBad)
			}
			for i, f := range c.wantBad {
				if verr.Fields[i] != f {
					t.Errorf("Fields[%d] = %q; want %q", i, verr.Fields[i], f)
				}
			}
		})
	}
}

// Encode → Decode сохраняет содержимое, а имена полей — camelCase.
func TestEncode(t *testing.T) {
	evt := validEvent()
	raw, err := evt.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for _, field := range []string{`"eventId"`, `"eventType"`, `"eventVersion"`, `"timestamp"`, `"userId"`, `"itemId"`, `"quantity"`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("encoded payload missing %s: %s", field, raw)
		}
	}

	back, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if *back != *evt {
		t.Errorf("roundtrip mismatch: got %+v want %+v", back, evt)
	}
}
