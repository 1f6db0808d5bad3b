// Package config loads the process-wide immutable configuration snapshot
// once at startup. Options are read from the environment: Load overlays
// PROTECTOR_-prefixed variables on the defaults, and applyFlatEnv reads a
// fixed set of unprefixed names. An optional YAML file can seed
// defaults for local development, with environment variables always
// taking precedence — same layering the teacher used for policies.yaml,
// generalized with koanf's env provider.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PlaceholderSeed is the documented default SYSTEM_SEED value. Starting
// the process with this value unchanged is a fatal ConfigurationError.
const PlaceholderSeed = "CHANGE_ME_BEFORE_DEPLOY"

type Server struct {
	Addr            string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type Blocklist struct {
	TTLSeconds int `koanf:"ttl_seconds"`
}

type Tarpit struct {
	MaxHops               int     `koanf:"max_hops"`
	HopWindowSeconds      int     `koanf:"hop_window_seconds"`
	MinDelaySeconds       float64 `koanf:"min_delay_seconds"`
	MaxDelaySeconds       float64 `koanf:"max_delay_seconds"`
	LabyrinthFraction     float64 `koanf:"labyrinth_fraction"`
	LabyrinthDepth        int     `koanf:"labyrinth_depth"`
	FingerprintScript     bool    `koanf:"fingerprint_script_enabled"`
	MinParagraphWords     int     `koanf:"min_paragraph_words"`
}

type Frequency struct {
	WindowSeconds int `koanf:"window_seconds"`
}

type Escalation struct {
	Threshold         float64 `koanf:"threshold"`
	Workers           int     `koanf:"workers"`
	QueueSize         int     `koanf:"queue_size"`
	EventDeadline     time.Duration `koanf:"event_deadline"`
}

type Model struct {
	URI            string        `koanf:"uri"`
	TimeoutSeconds float64       `koanf:"timeout_seconds"`
	InitRetries    int           `koanf:"init_retries"`
	InitDelay      time.Duration `koanf:"init_delay"`
}

type Reputation struct {
	Enabled              bool    `koanf:"enabled"`
	URL                  string  `koanf:"url"`
	APIKey               string  `koanf:"api_key"`
	MinMaliciousThreshold float64 `koanf:"min_malicious_threshold"`
	Bonus                float64 `koanf:"bonus"`
}

type CommunityReporting struct {
	Enabled  bool    `koanf:"enabled"`
	URL      string  `koanf:"url"`
	MinScore float64 `koanf:"min_score"`
}

type AlertSink struct {
	Kind           string `koanf:"kind"` // webhook | chat_webhook | mail
	URL            string `koanf:"url"`
	MinSeverity    string `koanf:"min_severity"` // info | warning | critical
	MailFrom       string `koanf:"mail_from"`
	MailTo         string `koanf:"mail_to"`
	SendgridAPIKey string `koanf:"sendgrid_api_key"`
}

type HTTPClient struct {
	MaxRetries             int     `koanf:"max_retries"`
	RetryWaitMinSeconds    float64 `koanf:"retry_wait_min_seconds"`
	RetryWaitMaxSeconds    float64 `koanf:"retry_wait_max_seconds"`
	BreakerFailureThreshold uint32 `koanf:"breaker_failure_threshold"`
	BreakerResetSeconds    float64 `koanf:"breaker_reset_seconds"`
	RequestTimeoutSeconds  float64 `koanf:"request_timeout_seconds"`
}

type Markov struct {
	DSN             string `koanf:"dsn"`
	MinWalkWords    int    `koanf:"min_walk_words"`
	MaxWalkWords    int    `koanf:"max_walk_words"`
	TerminateProb   float64 `koanf:"terminate_prob"`
}

type Robots struct {
	Path            string        `koanf:"path"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

type Logging struct {
	Level         string `koanf:"level"`
	AccessLog     bool   `koanf:"access_log"`
	AccessSample  int    `koanf:"access_log_sample"`
}

// Config is the immutable, process-wide settings snapshot. It is passed
// by reference into every component constructor; nothing mutates it
// after Load returns except RobotsRuleSet's own internal hot-reload,
// which does not touch this struct.
type Config struct {
	SystemSeed         string
	BackendURL         string
	ProxyPrefix        string
	Server             Server
	Redis              Redis
	Blocklist          Blocklist
	Tarpit             Tarpit
	Frequency          Frequency
	Escalation         Escalation
	Model              Model
	Reputation         Reputation
	CommunityReporting CommunityReporting
	Alerts             []AlertSink
	HTTPClient         HTTPClient
	Markov             Markov
	Robots             Robots
	Logging            Logging
}

func defaults() *Config {
	return &Config{
		BackendURL:  "http://backend:8081",
		ProxyPrefix: "/api",
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Redis: Redis{Addr: "redis:6379"},
		Blocklist: Blocklist{
			TTLSeconds: 86400,
		},
		Tarpit: Tarpit{
			MaxHops:           50,
			HopWindowSeconds:  60,
			MinDelaySeconds:   1.0,
			MaxDelaySeconds:   5.0,
			LabyrinthFraction: 0,
			LabyrinthDepth:    12,
			MinParagraphWords: 40,
		},
		Frequency: Frequency{WindowSeconds: 300},
		Escalation: Escalation{
			Threshold:     0.70,
			Workers:       4,
			QueueSize:     1024,
			EventDeadline: 10 * time.Second,
		},
		Model: Model{
			TimeoutSeconds: 2,
			InitRetries:    3,
			InitDelay:      time.Second,
		},
		Reputation: Reputation{
			MinMaliciousThreshold: 0.5,
			Bonus:                 0.3,
		},
		CommunityReporting: CommunityReporting{MinScore: 0.9},
		HTTPClient: HTTPClient{
			MaxRetries:              3,
			RetryWaitMinSeconds:     0.5,
			RetryWaitMaxSeconds:     8,
			BreakerFailureThreshold: 5,
			BreakerResetSeconds:     30,
			RequestTimeoutSeconds:   5,
		},
		Markov: Markov{
			MinWalkWords:  40,
			MaxWalkWords:  220,
			TerminateProb: 0.04,
		},
		Robots: Robots{
			Path:            "configs/robots.txt",
			RefreshInterval: 5 * time.Minute,
		},
		Logging: Logging{Level: "info", AccessSample: 1},
	}
}

// Load builds the configuration from an optional YAML file (cfgPath may
// be empty) overlaid with environment variables under the PROTECTOR_
// prefix, and validates required fields.
func Load(cfgPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err == nil {
			if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", cfgPath, err)
			}
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: "PROTECTOR_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.TrimPrefix(k, "PROTECTOR_")
			k = strings.ToLower(k)
			k = strings.ReplaceAll(k, "__", ".")
			return k, v
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// applyFlatEnv reads the unprefixed names SYSTEM_SEED, BACKEND_URL,
	// PROXY_PREFIX, MODEL_URI, MARKOV_DSN, ENABLE_IP_REPUTATION,
	// IP_REPUTATION_URL, IP_REPUTATION_API_KEY, COMMUNITY_REPORTING_ENABLED
	// and COMMUNITY_REPORT_URL. No other unprefixed name is read: the
	// blocklist TTL, tarpit hop/delay, frequency-window and escalation
	// threshold options have no unprefixed variable (BLOCKLIST_TTL_SECONDS,
	// TAR_PIT_*, FREQUENCY_WINDOW_SECONDS and ESCALATION_THRESHOLD are
	// ignored).
	applyFlatEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlatEnv(cfg *Config) {
	if v := os.Getenv("SYSTEM_SEED"); v != "" {
		cfg.SystemSeed = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("PROXY_PREFIX"); v != "" {
		cfg.ProxyPrefix = v
	}
	if v := os.Getenv("MODEL_URI"); v != "" {
		cfg.Model.URI = v
	}
	if v := os.Getenv("MARKOV_DSN"); v != "" {
		cfg.Markov.DSN = v
	}
	if v := os.Getenv("ENABLE_IP_REPUTATION"); v != "" {
		cfg.Reputation.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("IP_REPUTATION_URL"); v != "" {
		cfg.Reputation.URL = v
	}
	if v := os.Getenv("IP_REPUTATION_API_KEY"); v != "" {
		cfg.Reputation.APIKey = v
	}
	if v := os.Getenv("COMMUNITY_REPORTING_ENABLED"); v != "" {
		cfg.CommunityReporting.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("COMMUNITY_REPORT_URL"); v != "" {
		cfg.CommunityReporting.URL = v
	}
}

// Validate enforces the fatal-at-startup ConfigurationError rules.
func (c *Config) Validate() error {
	if c.SystemSeed == "" || c.SystemSeed == PlaceholderSeed {
		return fmt.Errorf("configuration error: SYSTEM_SEED is required and must be overridden from the placeholder value")
	}
	if c.Tarpit.MinDelaySeconds > c.Tarpit.MaxDelaySeconds {
		return fmt.Errorf("configuration error: tarpit min_delay_seconds must be <= max_delay_seconds")
	}
	return nil
}
