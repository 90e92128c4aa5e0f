package cache

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.GCTTL != 5*time.Minute {
		t.Errorf("GCTTL = %v, want 5m", cfg.GCTTL)
	}
	if cfg.FreshFor != 0 {
		t.Errorf("FreshFor = %v, want 0", cfg.FreshFor)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}, wantErr: false},
		{name: "zero gc ttl", mutate: func(c *Config) { c.GCTTL = 0 }, wantErr: true},
		{name: "negative fresh window", mutate: func(c *Config) { c.FreshFor = -time.Second }, wantErr: true},
		{name: "tiny key limit", mutate: func(c *Config) { c.MaxInlineKeyLength = 4 }, wantErr: true},
		{name: "custom fresh window", mutate: func(c *Config) { c.FreshFor = 30 * time.Second }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
