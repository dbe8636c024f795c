// Package roundtable provides a high-level façade over the orchestration
// engine for turn-based multi-participant conversations ("group chats").
//
// Most applications interact with this package by:
//  1. Building participants (model backed, scripted or custom)
//  2. Creating a GroupChat via New() or NewFromConfig()
//  3. Running a task with Invoke, which returns the final RunResult
//
// Each Invoke runs on a fresh engine.Engine, so a GroupChat can be reused for
// many tasks and invoked concurrently.
package roundtable

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/engine"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/metrics"
	"github.com/hupe1980/roundtable/model"
	"github.com/hupe1980/roundtable/termination"
	"github.com/hupe1980/roundtable/turn"
)

// TurnPolicy names a turn selection strategy.
type TurnPolicy string

const (
	TurnRoundRobin TurnPolicy = "round_robin"
	TurnModel      TurnPolicy = "model"
	TurnCustom     TurnPolicy = "custom"
)

// TerminationPolicy names a termination strategy.
type TerminationPolicy string

const (
	TerminationApprovalKeyword TerminationPolicy = "approval_keyword"
	TerminationNever           TerminationPolicy = "never"
	TerminationCustom          TerminationPolicy = "custom"
)

// Options configures a GroupChat.
type Options struct {
	// MaxRounds caps the number of participant turns (default 10).
	MaxRounds int

	// TurnDelay pauses between turns.
	TurnDelay time.Duration

	// TurnPolicy selects the next speaker (default round_robin).
	TurnPolicy TurnPolicy
	// SelectorModel drives TurnModel.
	SelectorModel model.Model
	// AllowRepeat lets TurnModel pick the previous speaker again (default true).
	AllowRepeat *bool
	// Selector is used with TurnCustom.
	Selector turn.Selector

	// TerminationPolicy defaults to approval_keyword when ApproverName is
	// set and to never otherwise.
	TerminationPolicy TerminationPolicy
	ApproverName      string
	// Keyword overrides the approval keyword ("approved").
	Keyword string
	// MaxMessages additionally stops the run at this transcript length.
	MaxMessages int
	// Policy is used with TerminationCustom.
	Policy termination.Policy

	// Observers receive every appended message.
	Observers []engine.Observer

	// MetricsRegisterer enables Prometheus metrics when non-nil.
	MetricsRegisterer prometheus.Registerer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// GroupChat is a reusable conversation setup: a fixed participant list plus
// the policies that drive it.
type GroupChat struct {
	participants []core.Participant
	opts         Options
	selector     turn.Selector
	policy       termination.Policy
	observers    []engine.Observer
}

// New creates a GroupChat. Policy names are resolved here; participant checks
// (names, approver membership) run when a task is invoked.
func New(participants []core.Participant, optFns ...func(o *Options)) (*GroupChat, error) {
	opts := Options{
		MaxRounds:  engine.DefaultMaxRounds,
		TurnPolicy: TurnRoundRobin,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	selector, err := resolveSelector(opts)
	if err != nil {
		return nil, err
	}
	policy, err := resolvePolicy(opts)
	if err != nil {
		return nil, err
	}

	observers := append([]engine.Observer(nil), opts.Observers...)
	if opts.MetricsRegisterer != nil {
		observers = append(observers, metrics.NewObserver(opts.MetricsRegisterer))
	}

	ps := make([]core.Participant, len(participants))
	copy(ps, participants)

	return &GroupChat{
		participants: ps,
		opts:         opts,
		selector:     selector,
		policy:       policy,
		observers:    observers,
	}, nil
}

func resolveSelector(opts Options) (turn.Selector, error) {
	switch opts.TurnPolicy {
	case TurnRoundRobin, "":
		return turn.NewRoundRobin(), nil
	case TurnModel:
		if opts.SelectorModel == nil {
			return nil, core.InvalidConfigurationf("turn policy %q requires a selector model", TurnModel)
		}
		return turn.NewModelSelector(opts.SelectorModel, func(o *turn.ModelSelectorOptions) {
			if opts.AllowRepeat != nil {
				o.AllowRepeat = *opts.AllowRepeat
			}
			o.Logger = opts.Logger
		}), nil
	case TurnCustom:
		if opts.Selector == nil {
			return nil, core.InvalidConfigurationf("turn policy %q requires a selector", TurnCustom)
		}
		return opts.Selector, nil
	default:
		return nil, core.InvalidConfigurationf("unknown turn policy %q", opts.TurnPolicy)
	}
}

func resolvePolicy(opts Options) (termination.Policy, error) {
	kind := opts.TerminationPolicy
	if kind == "" {
		kind = TerminationNever
		if opts.ApproverName != "" {
			kind = TerminationApprovalKeyword
		}
	}

	var base termination.Policy
	switch kind {
	case TerminationApprovalKeyword:
		if opts.ApproverName == "" {
			return nil, core.InvalidConfigurationf("termination policy %q requires an approver", kind)
		}
		base = termination.NewApproval(opts.ApproverName, func(a *termination.Approval) {
			if opts.Keyword != "" {
				a.Keyword = opts.Keyword
			}
		})
	case TerminationNever:
		base = termination.Never()
	case TerminationCustom:
		if opts.Policy == nil {
			return nil, core.InvalidConfigurationf("termination policy %q requires a policy", kind)
		}
		base = opts.Policy
	default:
		return nil, core.InvalidConfigurationf("unknown termination policy %q", kind)
	}

	if opts.MaxMessages > 0 {
		return termination.Any(base, termination.MaxMessages(opts.MaxMessages)), nil
	}
	return base, nil
}

// Participants returns the configured participants in order.
func (g *GroupChat) Participants() []core.Participant {
	out := make([]core.Participant, len(g.participants))
	copy(out, g.participants)
	return out
}

// NewEngine returns an Idle engine wired with the group chat's configuration
// and any extra engine options.
func (g *GroupChat) NewEngine(optFns ...func(o *engine.Options)) *engine.Engine {
	base := []func(o *engine.Options){
		engine.WithSelector(g.selector),
		engine.WithPolicy(g.policy),
		engine.WithObserver(g.observers...),
		engine.WithMaxRounds(g.opts.MaxRounds),
		engine.WithTurnDelay(g.opts.TurnDelay),
		engine.WithLogger(g.opts.Logger),
	}
	return engine.New(g.participants, append(base, optFns...)...)
}

// Invoke runs task to completion on a fresh engine. See engine.Engine.Invoke
// for the result contract.
func (g *GroupChat) Invoke(ctx context.Context, task string, optFns ...func(o *engine.Options)) (*core.RunResult, error) {
	return g.NewEngine(optFns...).Invoke(ctx, task)
}
