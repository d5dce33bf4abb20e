package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultJWTExpiresIn   = "24h"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "mcgateway"
	DefaultPGSSLMode      = "disable"
	DefaultGraphBaseURL   = "https://graph.facebook.com"
	DefaultGraphVersion   = "v19.0"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultChatModel      = "gpt-4o"
	DefaultVisionModel    = "gpt-4o"
	DefaultSendRateMax    = 600
	DefaultSendRateWindow = "1h"
	DefaultRetryMax       = 3
	DefaultRetryBaseMs    = 500
	DefaultContextLimit   = 20
	DefaultDeepLink       = "https://app.nickloop.com/dashboard"
)

type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Instagram InstagramConfig `toml:"instagram"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Delivery  DeliveryConfig  `toml:"delivery"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Prompts   PromptsConfig   `toml:"prompts"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	JWTExpiresIn  string `toml:"jwt_expires_in"`
	AdminUsername string `toml:"admin_username"`
	// AdminPasswordHash is a bcrypt hash; plaintext passwords are never stored.
	AdminPasswordHash string `toml:"admin_password_hash"`
}

type PostgresConfig struct {
	Host     string `toml:"host" validate:"required"`
	Port     int    `toml:"port" validate:"gt=0"`
	User     string `toml:"user" validate:"required"`
	Password string `toml:"password"`
	Database string `toml:"database" validate:"required"`
	SSLMode  string `toml:"sslmode"`
}

// InstagramConfig holds Meta Graph API credentials and endpoints.
type InstagramConfig struct {
	VerifyToken  string `toml:"verify_token" validate:"required"`
	PageToken    string `toml:"page_token" validate:"required"`
	AppID        string `toml:"app_id"`
	AppSecret    string `toml:"app_secret"`
	GraphBaseURL string `toml:"graph_base_url"`
	APIVersion   string `toml:"api_version"`
}

type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	// Model serves general-purpose chat and function calling.
	Model string `toml:"model"`
	// ReasoningModel, when set, serves analytical/strategic turns.
	ReasoningModel string `toml:"reasoning_model"`
	VisionModel    string `toml:"vision_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type DeliveryConfig struct {
	RateMax         int    `toml:"rate_max"`
	RateWindow      string `toml:"rate_window"`
	RetryMax        int    `toml:"retry_max"`
	RetryBaseMs     int    `toml:"retry_base_ms"`
	DefaultDeepLink string `toml:"default_deep_link"`
}

type PipelineConfig struct {
	ContextLimit int `toml:"context_limit"`
}

type PromptsConfig struct {
	// ProfilePath optionally points at a YAML file overriding the
	// built-in system policy and fallback sentences.
	ProfilePath string `toml:"profile_path"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn:  DefaultJWTExpiresIn,
			AdminUsername: "admin",
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Instagram: InstagramConfig{
			GraphBaseURL: DefaultGraphBaseURL,
			APIVersion:   DefaultGraphVersion,
		},
		OpenAI: OpenAIConfig{
			BaseURL:        DefaultOpenAIBaseURL,
			Model:          DefaultChatModel,
			VisionModel:    DefaultVisionModel,
			TimeoutSeconds: 30,
		},
		Delivery: DeliveryConfig{
			RateMax:         DefaultSendRateMax,
			RateWindow:      DefaultSendRateWindow,
			RetryMax:        DefaultRetryMax,
			RetryBaseMs:     DefaultRetryBaseMs,
			DefaultDeepLink: DefaultDeepLink,
		},
		Pipeline: PipelineConfig{
			ContextLimit: DefaultContextLimit,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks required fields. Called at startup so a misconfigured
// process fails fast instead of failing on the first webhook.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c.Postgres); err != nil {
		return fmt.Errorf("postgres config: %w", err)
	}
	if err := v.Struct(c.Instagram); err != nil {
		return fmt.Errorf("instagram config: %w", err)
	}
	return nil
}
