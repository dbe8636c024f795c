package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/roundtable"
	"github.com/hupe1980/roundtable/config"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/engine"
)

type runFlags struct {
	configPath  string
	task        string
	maxRounds   int
	stream      bool
	noColor     bool
	jsonOutput  bool
	metricsFile string
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a group chat",
		Long: `Runs the group chat described by the config file and prints the transcript live.

The task comes from --task or, if omitted, from the "task" field of the file.`,
		Example: `  roundtable run -c chat.yaml
  roundtable run -c chat.yaml --task "Explain gravity" --max-rounds 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "chat.yaml", "Path to the group chat YAML file")
	cmd.Flags().StringVarP(&f.task, "task", "t", "", "Opening message (overrides the file's task)")
	cmd.Flags().IntVar(&f.maxRounds, "max-rounds", 0, "Override the round cap")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "Stream model output as it is generated (default on a terminal)")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print the run result as JSON instead of a live transcript")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file after the run")

	return cmd
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runChat(ctx context.Context, cmd *cobra.Command, f runFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.maxRounds > 0 {
		cfg.MaxRounds = f.maxRounds
	}
	task := f.task
	if task == "" {
		task = cfg.Task
	}
	if task == "" {
		return fmt.Errorf("no task given: use --task or set task in %s", f.configPath)
	}

	out := cmd.OutOrStdout()
	tty := false
	if file, ok := out.(*os.File); ok {
		tty = isTerminal(file.Fd())
	}
	if f.noColor || !tty {
		color.NoColor = true
	}
	stream := f.stream
	if !cmd.Flags().Changed("stream") {
		stream = tty && !f.jsonOutput
	}

	names := make([]string, len(cfg.Participants))
	for i, p := range cfg.Participants {
		names[i] = p.Name
	}
	styler := newNameStyler(append([]string{core.UserAuthor}, names...))

	var observers []engine.Observer
	var printer *streamPrinter
	if !f.jsonOutput {
		if stream {
			printer = newStreamPrinter(out, styler)
			observers = append(observers, printer)
		} else {
			observers = append(observers, engine.NewPrinterObserver(out, func(o *engine.PrinterOptions) {
				o.FormatName = styler.format
			}))
		}
	}

	var reg *prometheus.Registry
	if f.metricsFile != "" {
		reg = prometheus.NewRegistry()
	}

	chat, err := roundtable.NewFromConfig(cfg, func(o *roundtable.ConfigOptions) {
		o.Observers = observers
		if reg != nil {
			o.MetricsRegisterer = reg
		}
		if printer != nil {
			o.Stream = true
			o.OnPartial = printer.OnPartial
		}
	})
	if err != nil {
		return err
	}

	if !f.jsonOutput {
		fmt.Fprintf(out, "%s\n%s\n\n", styler.format(core.UserAuthor), task)
	}

	res, runErr := chat.Invoke(ctx, task)

	if reg != nil {
		if err := prometheus.WriteToTextfile(f.metricsFile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if runErr != nil && res == nil {
		return runErr
	}

	if f.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newResultView(res)); err != nil {
			return err
		}
		return runErr
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s after %d rounds: %s\n", stateLabel(res.State), res.Rounds, res.Reason)
	return runErr
}

func stateLabel(s core.RunState) string {
	switch s {
	case core.StateTerminated:
		return color.GreenString("✓ terminated")
	case core.StateCompleted:
		return color.YellowString("● completed")
	default:
		return color.RedString("✗ %s", s)
	}
}

type resultView struct {
	RunID      string         `json:"run_id"`
	State      string         `json:"state"`
	Reason     string         `json:"reason"`
	Rounds     int            `json:"rounds"`
	Content    string         `json:"content,omitempty"`
	Error      string         `json:"error,omitempty"`
	Transcript []core.Message `json:"transcript"`
}

func newResultView(res *core.RunResult) resultView {
	v := resultView{
		RunID:      res.RunID,
		State:      res.State.String(),
		Reason:     res.Reason,
		Rounds:     res.Rounds,
		Content:    res.Content,
		Transcript: res.Transcript,
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}
