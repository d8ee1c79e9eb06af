package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// #region config

// Config is the full configuration surface of the agent.
type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	DBPath       string `yaml:"db_path"`
	ArtifactPath string `yaml:"artifact_path"`

	// Execution collaborators. Required together: the service refuses to
	// start without them even though recommendation alone would not need
	// them.
	RelayURL           string `yaml:"relay_url"`
	AgentKey           string `yaml:"agent_key"`
	ChainID            int64  `yaml:"chain_id"`
	RewardTokenAddress string `yaml:"reward_token_address"`

	// Normalization ceilings.
	MaxFollowers  float64 `yaml:"max_followers"`
	MaxPosts      float64 `yaml:"max_posts"`
	MaxEngagement float64 `yaml:"max_engagement"`

	// Episode shape.
	EpisodeLength int `yaml:"episode_length"`
	HistoryLimit  int `yaml:"history_limit"`

	// Training.
	TrainOnBoot bool `yaml:"train_on_boot"`
	TrainSteps  int  `yaml:"train_steps"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		DBPath:        "agent.db",
		ArtifactPath:  "policy/social_policy.json",
		ChainID:       4201,
		MaxFollowers:  10000,
		MaxPosts:      1000,
		MaxEngagement: 0.5,
		EpisodeLength: 100,
		HistoryLimit:  10,
		TrainSteps:    10000,
	}
}

// #endregion config

// #region load

// Load builds the configuration from defaults, an optional yaml file, then
// environment overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ListenAddr = envOr("AGENT_LISTEN_ADDR", cfg.ListenAddr)
	cfg.DBPath = envOr("AGENT_DB", cfg.DBPath)
	cfg.ArtifactPath = envOr("AGENT_ARTIFACT", cfg.ArtifactPath)
	cfg.RelayURL = envOr("AGENT_RELAY_URL", cfg.RelayURL)
	cfg.AgentKey = envOr("AGENT_KEY", cfg.AgentKey)
	cfg.RewardTokenAddress = envOr("AGENT_REWARD_TOKEN", cfg.RewardTokenAddress)

	if v := os.Getenv("AGENT_CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("AGENT_CHAIN_ID: %w", err)
		}
		cfg.ChainID = id
	}
	if v := os.Getenv("AGENT_TRAIN_ON_BOOT"); v != "" {
		cfg.TrainOnBoot = v == "true" || v == "1"
	}
	if v := os.Getenv("AGENT_TRAIN_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("AGENT_TRAIN_STEPS: %w", err)
		}
		cfg.TrainSteps = n
	}

	return cfg, nil
}

// #endregion load

// #region validate

// Validate checks the configuration at startup. Missing execution
// credentials are fatal: the service does not offer a degraded
// recommendation-only mode.
func (c Config) Validate() error {
	var missing []string
	if c.RelayURL == "" {
		missing = append(missing, "relay_url")
	}
	if c.AgentKey == "" {
		missing = append(missing, "agent_key")
	}
	if c.RewardTokenAddress == "" {
		missing = append(missing, "reward_token_address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %v", missing)
	}

	if c.MaxFollowers <= 0 || c.MaxPosts <= 0 || c.MaxEngagement <= 0 {
		return errors.New("normalization ceilings must be positive")
	}
	if c.EpisodeLength <= 0 {
		return errors.New("episode_length must be positive")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("history_limit must be positive")
	}
	if c.TrainSteps <= 0 {
		return errors.New("train_steps must be positive")
	}
	return nil
}

// #endregion validate

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
