package config

// Config holds fableforge configuration.
// Stored at: {home}/config.yaml
type Config struct {
	TextProvider  TextProviderCfg  `mapstructure:"text_provider" yaml:"text_provider"`
	ImageProvider ImageProviderCfg `mapstructure:"image_provider" yaml:"image_provider"`
	Generation    GenerationCfg    `mapstructure:"generation" yaml:"generation"`
	Server        ServerCfg        `mapstructure:"server" yaml:"server"`
	Store         StoreCfg         `mapstructure:"store" yaml:"store"`
}

// TextProviderCfg configures the text-generation provider.
type TextProviderCfg struct {
	Type        string  `mapstructure:"type" yaml:"type"`       // "openai"
	Model       string  `mapstructure:"model" yaml:"model"`     // Model name
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// ImageProviderCfg configures the image-generation provider.
type ImageProviderCfg struct {
	Type    string `mapstructure:"type" yaml:"type"`       // "openai"
	Model   string `mapstructure:"model" yaml:"model"`     // Model name
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// GenerationCfg tunes pacing and retries for outbound generation calls.
type GenerationCfg struct {
	CallSpacingSeconds float64 `mapstructure:"call_spacing_seconds" yaml:"call_spacing_seconds"` // Minimum spacing between provider calls, shared process-wide
	RetryAttempts      uint    `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelaySeconds  float64 `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// StoreCfg configures the document store connection.
type StoreCfg struct {
	URL       string `mapstructure:"url" yaml:"url"`
	QueueSize int    `mapstructure:"queue_size" yaml:"queue_size"` // Write sink buffer
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TextProvider: TextProviderCfg{
			Type:        "openai",
			Model:       "gpt-4o",
			APIKey:      "${OPENAI_API_KEY}",
			Temperature: 0.8,
		},
		ImageProvider: ImageProviderCfg{
			Type:   "openai",
			Model:  "dall-e-3",
			APIKey: "${OPENAI_API_KEY}",
		},
		Generation: GenerationCfg{
			CallSpacingSeconds: 2.0,
			RetryAttempts:      3,
			RetryDelaySeconds:  1.0,
		},
		Server: ServerCfg{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Store: StoreCfg{
			URL:       "http://localhost:9181",
			QueueSize: 256,
		},
	}
}
