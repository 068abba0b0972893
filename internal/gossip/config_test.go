package gossip

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig("node1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate, got: %v", err)
	}
}

func TestValidateRejectsEmptyNodeID(t *testing.T) {
	cfg := DefaultConfig("")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty NodeID")
	}
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"gossip interval", func(c *Config) { c.GossipInterval = 0 }},
		{"negative fanout", func(c *Config) { c.Fanout = -1 }},
		{"max events", func(c *Config) { c.MaxEventsPerExchange = -1 }},
		{"digest timeout", func(c *Config) { c.DigestTimeout = 0 }},
		{"drain timeout", func(c *Config) { c.DrainTimeout = 0 }},
		{"inbound workers", func(c *Config) { c.InboundWorkers = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig("node1")
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

// Fanout = 0 is explicitly valid: rounds still tick but contact no peers.
func TestValidateAcceptsZeroFanout(t *testing.T) {
	cfg := DefaultConfig("node1")
	cfg.Fanout = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Fanout=0 should validate, got: %v", err)
	}
}

func TestValidateAcceptsCustomDurations(t *testing.T) {
	cfg := DefaultConfig("node1")
	cfg.GossipInterval = 50 * time.Millisecond
	cfg.DigestTimeout = 25 * time.Millisecond
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}
