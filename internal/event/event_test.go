package event

import "testing"

func TestNewClonesPayload(t *testing.T) {
	payload := map[string]any{"k": "v"}
	e := New("node1", 1, payload)

	payload["k"] = "mutated"
	if e.Payload["k"] != "v" {
		t.Fatalf("event payload was mutated through caller's map: %v", e.Payload)
	}
}

func TestFormatID(t *testing.T) {
	if got := FormatID("node1", 7); got != "node1-7" {
		t.Fatalf("FormatID = %q, want %q", got, "node1-7")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		e       Event
		wantErr bool
	}{
		{"valid", Event{ID: "n-1", NodeID: "n", Timestamp: 1}, false},
		{"empty node", Event{ID: "n-1", NodeID: "", Timestamp: 1}, true},
		{"zero timestamp", Event{ID: "n-0", NodeID: "n", Timestamp: 0}, true},
		{"empty id", Event{ID: "", NodeID: "n", Timestamp: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.e.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	e := New("n", 1, map[string]any{"k": "v"})
	clone := e.Clone()
	clone.Payload["k"] = "mutated"
	if e.Payload["k"] != "v" {
		t.Fatalf("Clone shared payload with original")
	}
}
