package engine

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

// Observer is notified about every message appended by a participant, in
// strict transcript order and synchronously with the run. Returned errors are
// logged and never abort the run.
type Observer interface {
	OnMessage(ctx context.Context, msg core.Message) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, msg core.Message) error

// OnMessage implements Observer.
func (f ObserverFunc) OnMessage(ctx context.Context, msg core.Message) error { return f(ctx, msg) }

// TurnEvent describes one finished (or failed) participant turn.
type TurnEvent struct {
	RunID       string
	Round       int
	Participant string
	Duration    time.Duration
	Err         error
}

// TurnObserver is an optional Observer extension receiving turn timings,
// including failed turns that produce no message.
type TurnObserver interface {
	OnTurn(ctx context.Context, ev TurnEvent) error
}

// RunObserver is an optional Observer extension receiving the final result of
// every run that got past configuration validation.
type RunObserver interface {
	OnRunComplete(ctx context.Context, res *core.RunResult) error
}

// observerSet fans notifications out to observers, isolating each call.
type observerSet struct {
	observers []Observer
	logger    logging.Logger
}

func newObserverSet(obs []Observer, logger logging.Logger) observerSet {
	list := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return observerSet{observers: list, logger: logger}
}

func (s observerSet) message(ctx context.Context, msg core.Message) {
	for _, o := range s.observers {
		s.safeCall("on_message", func() error { return o.OnMessage(ctx, msg) })
	}
}

func (s observerSet) turn(ctx context.Context, ev TurnEvent) {
	for _, o := range s.observers {
		if to, ok := o.(TurnObserver); ok {
			s.safeCall("on_turn", func() error { return to.OnTurn(ctx, ev) })
		}
	}
}

func (s observerSet) runComplete(ctx context.Context, res *core.RunResult) {
	for _, o := range s.observers {
		if ro, ok := o.(RunObserver); ok {
			s.safeCall("on_run_complete", func() error { return ro.OnRunComplete(ctx, res) })
		}
	}
}

func (s observerSet) safeCall(hook string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Observer panicked", "hook", hook, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		s.logger.Warn("Observer failed", "hook", hook, "error", err)
	}
}

// PrinterOptions configures a PrinterObserver.
type PrinterOptions struct {
	// FormatName renders the author heading. Defaults to "**<name>**".
	FormatName func(name string) string
}

// PrinterObserver renders each message as a heading line with the author's
// name followed by the content and a blank line.
type PrinterObserver struct {
	mu   sync.Mutex
	w    io.Writer
	opts PrinterOptions
}

// NewPrinterObserver creates an observer writing a live transcript to w.
func NewPrinterObserver(w io.Writer, optFns ...func(o *PrinterOptions)) *PrinterObserver {
	opts := PrinterOptions{
		FormatName: func(name string) string { return "**" + name + "**" },
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &PrinterObserver{w: w, opts: opts}
}

// OnMessage implements Observer.
func (p *PrinterObserver) OnMessage(_ context.Context, msg core.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "%s\n%s\n\n", p.opts.FormatName(msg.Author), msg.Content)
	return err
}

// LoggingObserver logs every message and run outcome through a Logger.
type LoggingObserver struct {
	logger logging.Logger
}

// NewLoggingObserver creates an observer logging to logger.
func NewLoggingObserver(logger logging.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// OnMessage implements Observer.
func (l *LoggingObserver) OnMessage(_ context.Context, msg core.Message) error {
	l.logger.Info("Message appended", "index", msg.Index, "author", msg.Author, "chars", len(msg.Content))
	return nil
}

// OnTurn implements TurnObserver.
func (l *LoggingObserver) OnTurn(_ context.Context, ev TurnEvent) error {
	if ev.Err != nil {
		l.logger.Error("Turn failed", "run_id", ev.RunID, "round", ev.Round, "participant", ev.Participant, "duration", ev.Duration, "error", ev.Err)
		return nil
	}
	l.logger.Debug("Turn completed", "run_id", ev.RunID, "round", ev.Round, "participant", ev.Participant, "duration", ev.Duration)
	return nil
}

// OnRunComplete implements RunObserver.
func (l *LoggingObserver) OnRunComplete(_ context.Context, res *core.RunResult) error {
	l.logger.Info("Run completed", "run_id", res.RunID, "state", res.State.String(), "rounds", res.Rounds, "reason", res.Reason)
	return nil
}
