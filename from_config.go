package roundtable

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/roundtable/config"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/engine"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/model/anthropic"
	"github.com/hupe1980/roundtable/model/openai"
	"github.com/hupe1980/roundtable/participant"
)

// ModelFactory builds a model.Model from its configuration.
type ModelFactory func(mc config.ModelConfig) (model.Model, error)

// ConfigOptions tunes NewFromConfig.
type ConfigOptions struct {
	// NewModel builds provider models. Defaults to NewProviderModel.
	NewModel ModelFactory

	// Stream enables streaming for model participants; chunks go to OnPartial.
	Stream    bool
	OnPartial func(participant, chunk string)

	Observers         []engine.Observer
	MetricsRegisterer prometheus.Registerer

	// Logger overrides the logger derived from the file's log section.
	Logger logging.Logger
}

// NewFromConfig builds a GroupChat from a validated configuration file.
func NewFromConfig(cfg *config.Config, optFns ...func(o *ConfigOptions)) (*GroupChat, error) {
	opts := ConfigOptions{NewModel: NewProviderModel}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.NewModel == nil {
		opts.NewModel = NewProviderModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, core.InvalidConfigurationf("%v", err)
		}
		logger = logging.NewSlogLogger(level, cfg.Log.Format, false)
	}

	participants := make([]core.Participant, 0, len(cfg.Participants))
	for _, pc := range cfg.Participants {
		p, err := buildParticipant(pc, opts, logger)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}

	var selectorModel model.Model
	if cfg.TurnPolicy.Type == config.TurnModel {
		m, err := opts.NewModel(*cfg.TurnPolicy.Model)
		if err != nil {
			return nil, fmt.Errorf("turn policy model: %w", err)
		}
		selectorModel = m
	}

	return New(participants, func(o *Options) {
		o.MaxRounds = cfg.MaxRounds
		o.TurnDelay = cfg.TurnDelay.Std()
		o.TurnPolicy = TurnPolicy(cfg.TurnPolicy.Type)
		o.SelectorModel = selectorModel
		o.AllowRepeat = cfg.TurnPolicy.AllowRepeat
		o.TerminationPolicy = TerminationPolicy(cfg.Termination.Type)
		o.ApproverName = cfg.Termination.Approver
		o.Keyword = cfg.Termination.Keyword
		o.MaxMessages = cfg.Termination.MaxMessages
		o.Observers = opts.Observers
		o.MetricsRegisterer = opts.MetricsRegisterer
		o.Logger = logger
	})
}

func buildParticipant(pc config.ParticipantConfig, opts ConfigOptions, logger logging.Logger) (core.Participant, error) {
	var p core.Participant
	if pc.Scripted() {
		p = participant.NewScripted(pc.Name, pc.Replies, func(o *participant.ScriptedOptions) {
			o.Cycle = pc.Cycle
			if pc.Description != "" {
				o.Description = pc.Description
			}
		})
	} else {
		m, err := opts.NewModel(*pc.Model)
		if err != nil {
			return nil, fmt.Errorf("participant %q: %w", pc.Name, err)
		}
		mp, err := participant.NewModel(pc.Name, m, func(o *participant.ModelOptions) {
			if pc.Description != "" {
				o.Description = pc.Description
			}
			if pc.Instruction != "" {
				o.Instruction = participant.NewInstructionFromText(pc.Instruction)
			}
			if pc.MaxHistoryMessages > 0 {
				o.MaxHistoryMessages = pc.MaxHistoryMessages
			}
			o.MaxHistoryTokens = pc.MaxHistoryTokens
			o.Stream = opts.Stream
			o.OnPartial = opts.OnPartial
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		p = mp
	}

	// The timeout bounds each attempt so a hung call can be retried.
	if t := pc.Timeout.Std(); t > 0 {
		p = participant.WithTimeout(p, t)
	}
	if pc.Retries > 0 {
		p = participant.WithRetry(p, func(o *participant.RetryOptions) {
			o.MaxAttempts = pc.Retries + 1
			o.Logger = logger
		})
	}
	return p, nil
}

// NewProviderModel builds an OpenAI or Anthropic model from its configuration.
func NewProviderModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			if mc.Temperature != nil {
				o.Temperature = *mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(mc.MaxTokens)
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			if mc.Temperature != nil {
				o.Temperature = *mc.Temperature
			}
			if mc.MaxTokens > 0 {
				o.MaxTokens = int64(mc.MaxTokens)
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		}), nil
	default:
		return nil, core.InvalidConfigurationf("unknown model provider %q", mc.Provider)
	}
}
