package casegen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/brunobiangulo/casegen/llm"
	"github.com/brunobiangulo/casegen/parser"
)

// Config holds all configuration for the casegen engine.
type Config struct {
	// Chat is the model that turns BRD text into test cases.
	Chat LLMConfig `json:"chat" yaml:"chat" mapstructure:"chat"`

	// Preview controls page image rendering.
	Preview PreviewConfig `json:"preview" yaml:"preview" mapstructure:"preview"`

	// GenerateTimeout bounds one generation request in the HTTP server.
	// Zero means no bound beyond the client connection.
	GenerateTimeout time.Duration `json:"generate_timeout" yaml:"generate_timeout" mapstructure:"generate_timeout"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"` // groq, ollama, openai, gemini, custom
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
}

// PreviewConfig configures page previews.
type PreviewConfig struct {
	DPI   float64 `json:"dpi" yaml:"dpi" mapstructure:"dpi"`
	Scale int     `json:"scale" yaml:"scale" mapstructure:"scale"`
}

// DefaultConfig returns a Config that talks to Groq's hosted Llama model.
// The API key still has to come from the environment or a config file.
func DefaultConfig() Config {
	return Config{
		Chat: LLMConfig{
			Provider: "groq",
			Model:    llm.DefaultGroqModel,
		},
		Preview: PreviewConfig{
			DPI:   parser.DefaultPreviewDPI,
			Scale: parser.DefaultPreviewScale,
		},
		GenerateTimeout: 5 * time.Minute,
	}
}

// providerKeyEnv names the conventional API key variable for each hosted
// provider, consulted when no key is configured explicitly.
var providerKeyEnv = map[string]string{
	"groq":   "GROQ_API_KEY",
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// LoadConfig resolves configuration from defaults, an optional config file
// and CASEGEN_* environment variables, in increasing precedence. When path
// is empty, casegen.yaml is looked up in the working directory and in
// $HOME/.casegen; a missing file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("chat.provider", d.Chat.Provider)
	v.SetDefault("chat.model", d.Chat.Model)
	v.SetDefault("chat.base_url", d.Chat.BaseURL)
	v.SetDefault("chat.api_key", d.Chat.APIKey)
	v.SetDefault("preview.dpi", d.Preview.DPI)
	v.SetDefault("preview.scale", d.Preview.Scale)
	v.SetDefault("generate_timeout", d.GenerateTimeout)

	v.SetEnvPrefix("CASEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("casegen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".casegen"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.ResolveAPIKey()
	return cfg, nil
}

// ResolveAPIKey fills an empty chat API key from the provider's
// conventional environment variable (GROQ_API_KEY, OPENAI_API_KEY,
// GEMINI_API_KEY).
func (c *Config) ResolveAPIKey() {
	if c.Chat.APIKey != "" {
		return
	}
	if env, ok := providerKeyEnv[c.Chat.Provider]; ok {
		c.Chat.APIKey = os.Getenv(env)
	}
}

// Validate checks the configuration eagerly so a misconfigured process
// fails at startup rather than on the first generation.
func (c Config) Validate() error {
	if err := c.validateSettings(); err != nil {
		return err
	}
	if llm.RequiresAPIKey(c.Chat.Provider) && c.Chat.APIKey == "" {
		hint := "CASEGEN_CHAT_API_KEY"
		if env, ok := providerKeyEnv[c.Chat.Provider]; ok {
			hint += " or " + env
		}
		return fmt.Errorf("%w: %s provider needs a key (set %s)", ErrMissingAPIKey, c.Chat.Provider, hint)
	}
	return nil
}

func (c Config) validateSettings() error {
	if c.Chat.Provider == "" {
		return fmt.Errorf("%w: chat provider not set", ErrInvalidConfig)
	}
	if err := c.ValidatePreview(); err != nil {
		return err
	}
	if c.GenerateTimeout < 0 {
		return fmt.Errorf("%w: negative generate timeout", ErrInvalidConfig)
	}
	return nil
}

// ValidatePreview checks only the preview settings, for callers that render
// pages without talking to a model.
func (c Config) ValidatePreview() error {
	if c.Preview.DPI <= 0 {
		return fmt.Errorf("%w: preview dpi must be positive, got %v", ErrInvalidConfig, c.Preview.DPI)
	}
	if c.Preview.Scale < 1 {
		return fmt.Errorf("%w: preview scale must be at least 1, got %d", ErrInvalidConfig, c.Preview.Scale)
	}
	return nil
}

func (c Config) llmConfig() llm.Config {
	return llm.Config{
		Provider: c.Chat.Provider,
		Model:    c.Chat.Model,
		BaseURL:  c.Chat.BaseURL,
		APIKey:   c.Chat.APIKey,
	}
}

func (c Config) previewOptions() parser.PreviewOptions {
	return parser.PreviewOptions{DPI: c.Preview.DPI, Scale: c.Preview.Scale}
}
