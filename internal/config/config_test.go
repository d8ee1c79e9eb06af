package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.RelayURL = "http://localhost:9000"
	cfg.AgentKey = "k"
	cfg.RewardTokenAddress = "0xtoken"
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EpisodeLength != 100 || cfg.HistoryLimit != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxFollowers != 10000 || cfg.MaxPosts != 1000 || cfg.MaxEngagement != 0.5 {
		t.Fatalf("unexpected ceilings: %+v", cfg)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	body := "listen_addr: \":9999\"\nepisode_length: 50\nrelay_url: http://relay:9000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" || cfg.EpisodeLength != 50 {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.RelayURL != "http://relay:9000" {
		t.Fatalf("relay url = %s", cfg.RelayURL)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("AGENT_RELAY_URL", "http://env-relay:9000")
	t.Setenv("AGENT_CHAIN_ID", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RelayURL != "http://env-relay:9000" {
		t.Fatalf("relay url = %s", cfg.RelayURL)
	}
	if cfg.ChainID != 42 {
		t.Fatalf("chain id = %d", cfg.ChainID)
	}
}

func TestValidateRequiresExecutionCredentials(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing credential error")
	}

	cfg = validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejectsBadShapes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ceiling", func(c *Config) { c.MaxFollowers = 0 }},
		{"zero episode", func(c *Config) { c.EpisodeLength = 0 }},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }},
		{"zero train steps", func(c *Config) { c.TrainSteps = 0 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}
