package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/report"
	"github.com/BaSui01/mysteryshopper/quick"
)

// =============================================================================
// 🛍️ run 命令
// =============================================================================

const (
	exitGateFailed = 2
	exitAborted    = 3

	outputHuman = "human"
)

type runFlags struct {
	goal        string
	maxSteps    int
	output      string
	outFile     string
	failIf      string
	screenshots string
	quiet       bool
	noColor     bool
	verbose     bool
}

func (a *app) runCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run URL",
		Short: "Run one journey and print its report",
		Example: `  mysteryshopper run https://example.com
  mysteryshopper run https://example.com --goal "Find pricing" --max-steps 8
  mysteryshopper run https://example.com --output json --out report.json
  mysteryshopper run https://example.com --fail-if "avg_score < 60 || high_issues > 0"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runJourney(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.goal, "goal", "g", "", "Goal of the journey (default from journey.default_goal)")
	cmd.Flags().IntVarP(&f.maxSteps, "max-steps", "n", 0, "Maximum steps (default from journey.max_steps)")
	cmd.Flags().StringVarP(&f.output, "output", "o", outputHuman, "Output format: human, json, yaml, summary or dot")
	cmd.Flags().StringVar(&f.outFile, "out", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&f.failIf, "fail-if", "", "Exit with code 2 when this expression over the summary is true")
	cmd.Flags().StringVar(&f.screenshots, "screenshots", "", "Directory for screenshots (default from artifacts.dir)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Hide progress output")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Show component logs")
	return cmd
}

func (a *app) runJourney(cmd *cobra.Command, startURL string, f *runFlags) error {
	// 先校验输出格式与门禁表达式，避免跑完才失败
	var format report.Format
	if f.output != outputHuman {
		var err error
		if format, err = report.ParseFormat(f.output); err != nil {
			return err
		}
	}
	var gate *report.Gate
	if f.failIf != "" {
		var err error
		if gate, err = report.CompileGate(f.failIf); err != nil {
			return err
		}
	}
	if err := journey.ValidateStartURL(startURL); err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if !f.verbose {
		cfg.Log.Level = "warn"
	}
	if f.screenshots != "" {
		cfg.Artifacts.Dir = f.screenshots
	}
	logger := a.newLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	req := journey.Request{
		StartURL: strings.TrimSpace(startURL),
		Goal:     f.goal,
		MaxSteps: cfg.Journey.MaxSteps,
	}
	if req.Goal == "" {
		req.Goal = cfg.Journey.DefaultGoal
	}
	if cmd.Flags().Changed("max-steps") {
		req.MaxSteps = f.maxSteps
	}

	opts := append([]quick.Option{quick.WithConfig(cfg), quick.WithLogger(logger)}, a.quickOpts...)
	ctrl, err := quick.New(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := newProgressPrinter(cmd.ErrOrStderr(), f.quiet, f.noColor)
	j, err := ctrl.Run(ctx, req, printer)
	printer.Stop()
	if err != nil {
		return err
	}

	logger.Info("journey finished",
		zap.String("journey_id", j.ID),
		zap.String("status", string(j.Status)),
		zap.Int("steps", len(j.Steps)),
	)

	if err := a.writeReport(cmd, j, f, format); err != nil {
		return err
	}

	if j.Aborted() {
		return &exitError{code: exitAborted, err: fmt.Errorf("journey aborted: %s could not be loaded", j.StartURL)}
	}
	if gate != nil {
		failed, err := gate.Failed(report.Summarize(j))
		if err != nil {
			return err
		}
		if failed {
			return &exitError{code: exitGateFailed, err: fmt.Errorf("report gate failed: %s", gate)}
		}
	}
	return nil
}

func (a *app) writeReport(cmd *cobra.Command, j *journey.Journey, f *runFlags, format report.Format) error {
	var body []byte
	if f.output == outputHuman {
		var b strings.Builder
		writeHuman(&b, report.Summarize(j), f.noColor)
		body = []byte(b.String())
	} else {
		var err error
		if body, err = report.Render(j, format); err != nil {
			return err
		}
	}

	if f.outFile == "" {
		_, err := cmd.OutOrStdout().Write(body)
		return err
	}
	if err := os.WriteFile(f.outFile, body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", f.outFile)
	return nil
}

// =============================================================================
// 🎨 人类可读输出
// =============================================================================

func writeHuman(w io.Writer, s report.Summary, noColor bool) {
	title := newColor(noColor, color.Bold)
	dim := newColor(noColor, color.Faint)

	title.Fprintln(w, "AI Mystery Shopper Report")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "URL:     %s\n", s.URL)
	fmt.Fprintf(w, "Goal:    %s\n", s.Goal)
	fmt.Fprintf(w, "Status:  %s %s\n", s.Status, dim.Sprintf("(%s)", s.FinishReason))
	fmt.Fprintf(w, "Score:   %s\n", gradeColor(noColor, s.Grade).Sprintf("%.1f%% (%s)", s.AverageScore, s.Grade))
	fmt.Fprintf(w, "Issues:  %d (%d high)\n", s.TotalIssues, s.HighIssues)
	if s.Warnings > 0 {
		fmt.Fprintf(w, "Warnings: %d\n", s.Warnings)
	}

	if len(s.Steps) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STEP\tPAGE\tACTION\tSCORE\tISSUES\tURL")
		for _, st := range s.Steps {
			action := string(st.Action)
			if st.Label != "" {
				action += " " + st.Label
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", st.Step, st.PageType, action, st.Score, st.Issues, st.URL)
		}
		_ = tw.Flush()
	}

	if len(s.TopSuggestions) > 0 {
		fmt.Fprintln(w)
		title.Fprintln(w, "Key Recommendations:")
		for i, sug := range s.TopSuggestions {
			fmt.Fprintf(w, "  #%d: %s\n", i+1, sug.Suggestion)
		}
	}
}

func newColor(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

func gradeColor(noColor bool, g report.Grade) *color.Color {
	switch g {
	case report.GradeGood:
		return newColor(noColor, color.FgGreen)
	case report.GradeFair:
		return newColor(noColor, color.FgYellow)
	default:
		return newColor(noColor, color.FgRed)
	}
}

// =============================================================================
// ⏳ 进度输出
// =============================================================================

// progressPrinter shows a spinner on terminals and one line per milestone.
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	spin  *spinner.Spinner
	quiet bool

	warn *color.Color
	ok   *color.Color
	fail *color.Color
}

func newProgressPrinter(w io.Writer, quiet, noColor bool) *progressPrinter {
	p := &progressPrinter{
		w:     w,
		quiet: quiet,
		warn:  newColor(noColor, color.FgYellow),
		ok:    newColor(noColor, color.FgGreen),
		fail:  newColor(noColor, color.FgRed),
	}
	if !quiet {
		p.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
		p.spin.Start()
	}
	return p
}

func (p *progressPrinter) OnProgress(pr journey.Progress) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch pr.Phase {
	case journey.PhaseWarning:
		p.println(p.warn.Sprint("! ") + pr.Message)
	case journey.PhaseDecided:
		p.println(fmt.Sprintf("  [%d/%d] %s", pr.Step, pr.MaxSteps, pr.Message))
	case journey.PhaseFinished:
		p.println(p.ok.Sprint("✔ ") + pr.Message)
	case journey.PhaseAborted:
		p.println(p.fail.Sprint("✖ ") + pr.Message)
	default:
		if pr.HasEstimate() {
			p.spin.Suffix = fmt.Sprintf(" %3.0f%% %s", pr.Percent, pr.Message)
		} else {
			p.spin.Suffix = " " + pr.Message
		}
	}
}

// println writes a line without tearing the spinner.
func (p *progressPrinter) println(line string) {
	active := p.spin.Active()
	if active {
		p.spin.Stop()
	}
	fmt.Fprintln(p.w, line)
	if active {
		p.spin.Start()
	}
}

// Stop halts the spinner.
func (p *progressPrinter) Stop() {
	if p.spin == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spin.Stop()
}
