// Package config loads group chat definitions from YAML files.
//
// Values may reference environment variables as ${NAME}; a .env file next to
// the working directory is loaded first when present. Provider API keys fall
// back to OPENAI_API_KEY and ANTHROPIC_API_KEY.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/roundtable/core"
)

// Provider names accepted in participant definitions.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderScripted  = "scripted"
)

// Turn and termination policy names.
const (
	TurnRoundRobin = "round_robin"
	TurnModel      = "model"

	TerminationApproval = "approval_keyword"
	TerminationNever    = "never"
)

const (
	envOpenAIAPIKey    = "OPENAI_API_KEY"
	envAnthropicAPIKey = "ANTHROPIC_API_KEY"

	defaultMaxRounds      = 10
	defaultKeyword        = "approved"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Config is a complete group chat definition.
type Config struct {
	Task         string              `yaml:"task,omitempty" jsonschema:"description=Opening message of the conversation"`
	MaxRounds    int                 `yaml:"max_rounds,omitempty" jsonschema:"minimum=1,default=10"`
	TurnDelay    Duration            `yaml:"turn_delay,omitempty" jsonschema:"description=Pause between turns such as 5s"`
	TurnPolicy   TurnPolicyConfig    `yaml:"turn_policy,omitempty"`
	Termination  TerminationConfig   `yaml:"termination,omitempty"`
	Participants []ParticipantConfig `yaml:"participants" jsonschema:"required,minItems=1"`
	Log          LogConfig           `yaml:"log,omitempty"`
}

// TurnPolicyConfig selects the turn selector.
type TurnPolicyConfig struct {
	Type  string       `yaml:"type,omitempty" jsonschema:"enum=round_robin,enum=model,default=round_robin"`
	Model *ModelConfig `yaml:"model,omitempty" jsonschema:"description=Model asked to pick the next speaker (type model only)"`
	// AllowRepeat lets the model pick the previous speaker again.
	AllowRepeat *bool `yaml:"allow_repeat,omitempty"`
}

// TerminationConfig selects the termination policy.
type TerminationConfig struct {
	Type        string `yaml:"type,omitempty" jsonschema:"enum=approval_keyword,enum=never,default=approval_keyword"`
	Approver    string `yaml:"approver,omitempty" jsonschema:"description=Participant whose approval ends the conversation"`
	Keyword     string `yaml:"keyword,omitempty" jsonschema:"default=approved"`
	MaxMessages int    `yaml:"max_messages,omitempty" jsonschema:"description=Also stop once the transcript holds this many messages"`
}

// ModelConfig describes a model endpoint.
type ModelConfig struct {
	Provider    string   `yaml:"provider" jsonschema:"required,enum=openai,enum=anthropic"`
	Name        string   `yaml:"name,omitempty" jsonschema:"description=Provider model identifier"`
	APIKey      string   `yaml:"api_key,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" jsonschema:"minimum=0,maximum=2"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
}

// ParticipantConfig describes one participant.
type ParticipantConfig struct {
	Name        string       `yaml:"name" jsonschema:"required"`
	Description string       `yaml:"description,omitempty"`
	Instruction string       `yaml:"instruction,omitempty" jsonschema:"description=System prompt; may use {{.Name}} and {{.Description}}"`
	Model       *ModelConfig `yaml:"model,omitempty"`

	// Replies are used by scripted participants instead of a model.
	Replies []string `yaml:"replies,omitempty"`
	Cycle   bool     `yaml:"cycle,omitempty"`

	Timeout            Duration `yaml:"timeout,omitempty"`
	Retries            int      `yaml:"retries,omitempty" jsonschema:"minimum=0,description=Extra attempts after a transient failure"`
	MaxHistoryMessages int      `yaml:"max_history_messages,omitempty"`
	MaxHistoryTokens   int      `yaml:"max_history_tokens,omitempty"`
}

// Scripted reports whether the participant replays fixed replies.
func (p ParticipantConfig) Scripted() bool { return p.Model == nil }

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format,omitempty" jsonschema:"enum=text,enum=json,default=text"`
}

// Load reads, expands and validates a YAML file. A .env file in the working
// directory is loaded beforehand if it exists.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data, expands ${ENV} references, applies defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", core.ErrInvalidConfiguration, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxRounds == 0 {
		c.MaxRounds = defaultMaxRounds
	}
	if c.TurnPolicy.Type == "" {
		c.TurnPolicy.Type = TurnRoundRobin
	}
	if c.Termination.Type == "" {
		c.Termination.Type = TerminationApproval
	}
	if c.Termination.Keyword == "" {
		c.Termination.Keyword = defaultKeyword
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	c.TurnPolicy.Model.applyDefaults()
	for i := range c.Participants {
		c.Participants[i].Model.applyDefaults()
	}
}

func (m *ModelConfig) applyDefaults() {
	if m == nil {
		return
	}
	m.Provider = strings.ToLower(strings.TrimSpace(m.Provider))
	switch m.Provider {
	case ProviderOpenAI:
		if m.Name == "" {
			m.Name = defaultOpenAIModel
		}
		if m.APIKey == "" {
			m.APIKey = strings.TrimSpace(os.Getenv(envOpenAIAPIKey))
		}
	case ProviderAnthropic:
		if m.Name == "" {
			m.Name = defaultAnthropicModel
		}
		if m.APIKey == "" {
			m.APIKey = strings.TrimSpace(os.Getenv(envAnthropicAPIKey))
		}
	}
}

// Validate reports the first configuration problem, wrapped in
// core.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.MaxRounds <= 0 {
		return core.InvalidConfigurationf("max_rounds must be positive, got %d", c.MaxRounds)
	}
	if c.TurnDelay < 0 {
		return core.InvalidConfigurationf("turn_delay must not be negative")
	}
	if len(c.Participants) == 0 {
		return core.InvalidConfigurationf("at least one participant is required")
	}

	names := make(map[string]struct{}, len(c.Participants))
	for i, p := range c.Participants {
		if strings.TrimSpace(p.Name) == "" {
			return core.InvalidConfigurationf("participants[%d]: name is required", i)
		}
		if p.Name == core.UserAuthor {
			return core.InvalidConfigurationf("participants[%d]: name %q is reserved", i, p.Name)
		}
		if _, dup := names[p.Name]; dup {
			return core.InvalidConfigurationf("duplicate participant name %q", p.Name)
		}
		names[p.Name] = struct{}{}

		if p.Scripted() {
			if len(p.Replies) == 0 {
				return core.InvalidConfigurationf("participant %q: needs a model or scripted replies", p.Name)
			}
		} else if err := p.Model.validate(); err != nil {
			return core.InvalidConfigurationf("participant %q: %v", p.Name, err)
		}
		if p.Retries < 0 || p.Timeout < 0 {
			return core.InvalidConfigurationf("participant %q: retries and timeout must not be negative", p.Name)
		}
	}

	switch c.TurnPolicy.Type {
	case TurnRoundRobin:
	case TurnModel:
		if c.TurnPolicy.Model == nil {
			return core.InvalidConfigurationf("turn_policy: type %q requires a model", TurnModel)
		}
		if err := c.TurnPolicy.Model.validate(); err != nil {
			return core.InvalidConfigurationf("turn_policy: %v", err)
		}
	default:
		return core.InvalidConfigurationf("unknown turn_policy type %q", c.TurnPolicy.Type)
	}

	switch c.Termination.Type {
	case TerminationApproval:
		if c.Termination.Approver == "" {
			return core.InvalidConfigurationf("termination: approver is required for %q", TerminationApproval)
		}
		if _, ok := names[c.Termination.Approver]; !ok {
			return core.InvalidConfigurationf("termination: approver %q is not a participant", c.Termination.Approver)
		}
	case TerminationNever:
	default:
		return core.InvalidConfigurationf("unknown termination type %q", c.Termination.Type)
	}
	if c.Termination.MaxMessages < 0 {
		return core.InvalidConfigurationf("termination: max_messages must not be negative")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return core.InvalidConfigurationf("unknown log level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return core.InvalidConfigurationf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func (m *ModelConfig) validate() error {
	switch m.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	case "":
		return fmt.Errorf("model provider is required")
	default:
		return fmt.Errorf("unknown model provider %q", m.Provider)
	}
	if m.Temperature != nil && (*m.Temperature < 0 || *m.Temperature > 2) {
		return fmt.Errorf("temperature must be within [0, 2]")
	}
	if m.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}

// Duration is a time.Duration written as a Go duration string ("5s", "1m30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Std returns the value as time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
