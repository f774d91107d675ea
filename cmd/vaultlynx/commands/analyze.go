package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/bl4ck0w1/vaultlynx/internal/app"
	"github.com/bl4ck0w1/vaultlynx/internal/session"
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

const progressBarWidth = 40

func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <export.json>",
		Short: "Analyze a password vault export",
		Long: `Analyze an unencrypted JSON password vault export: per-item strength, reuse,
password age, two-factor coverage and breach exposure (k-anonymity range lookups),
then print or write a security report.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringP("format", "f", models.ReportFormatText, "Report format (text, json, yaml)")
	cmd.Flags().StringP("output", "o", "", "Write the report to this file instead of stdout (.gz compresses)")
	cmd.Flags().Bool("no-breach", false, "Skip breach lookups")
	cmd.Flags().Bool("include-items", false, "Include redacted per-item results in the report")
	cmd.Flags().Bool("use-context", false, "Penalize passwords that contain the item name, username or domain")
	cmd.Flags().IntP("timeout", "t", 10, "Analysis timeout in minutes")

	_ = viper.BindPFlag("analyze.format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("analyze.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("analyze.no_breach", cmd.Flags().Lookup("no-breach"))
	_ = viper.BindPFlag("analysis.include_items", cmd.Flags().Lookup("include-items"))
	_ = viper.BindPFlag("analysis.use_item_context", cmd.Flags().Lookup("use-context"))
	_ = viper.BindPFlag("analyze.timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	format := strings.ToLower(viper.GetString("analyze.format"))
	if err := models.ValidateReportFormat(format); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if viper.GetBool("analyze.no_breach") {
		cfg.Breach.Enabled = false
	}
	cfg.Metrics.Enabled = false

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read vault export: %w", err)
	}

	timeout := time.Duration(viper.GetInt("analyze.timeout")) * time.Minute
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logrus.Info("Received interrupt signal, stopping analysis...")
			cancel()
		case <-ctx.Done():
		}
	}()

	pipeline, err := app.New(cfg, logrus.StandardLogger(), app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	showProgress := !viper.GetBool("quiet") && term.IsTerminal(int(os.Stderr.Fd()))
	var progressDone chan struct{}
	if showProgress {
		events, unsubscribe := pipeline.Session.Subscribe(64)
		defer unsubscribe()
		progressDone = make(chan struct{})
		go func() {
			defer close(progressDone)
			renderProgress(os.Stderr, events)
		}()
	}

	h, err := pipeline.Session.Load(ctx, filepath.Base(path), raw)
	if err != nil {
		return fmt.Errorf("failed to analyze %s: %w", path, err)
	}

	snap, err := waitForResults(ctx, pipeline.Session, h)
	if err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logrus.Warnf("Analysis timed out after %s, reporting partial breach results", timeout)
	}
	if progressDone != nil {
		select {
		case <-progressDone:
		case <-time.After(time.Second):
		}
	}
	if snap.LeakCheckError != "" {
		logrus.Warnf("Breach check incomplete: %s", snap.LeakCheckError)
	}

	report, err := pipeline.Report(snap)
	if err != nil {
		return err
	}

	if out := viper.GetString("analyze.output"); out != "" {
		written, err := pipeline.Reports.ExportReport(report, format, out)
		if err != nil {
			return err
		}
		if !viper.GetBool("quiet") {
			printSummary(os.Stderr, report, elapsedOf(snap))
			fmt.Fprintf(os.Stderr, "Report written to %s\n", written)
		}
		return nil
	}
	return pipeline.Reports.Render(os.Stdout, report, format)
}

// waitForResults waits for the breach pass. When ctx ends first only that pass is
// stopped, so the synchronous results still reach the report.
func waitForResults(ctx context.Context, sess *session.Session, h *session.Handle) (session.Snapshot, error) {
	select {
	case <-h.Done():
	case <-ctx.Done():
		logrus.Warn("Stopping breach checks, unchecked passwords are reported as not leaked")
		sess.CancelLeaks()
		<-h.Done()
	}
	return h.Wait(context.Background())
}

func elapsedOf(snap session.Snapshot) time.Duration {
	if snap.StartedAt == nil || snap.CompletedAt == nil {
		return 0
	}
	return snap.CompletedAt.Sub(*snap.StartedAt)
}

// renderProgress draws one bar per stage until the session completes or fails.
func renderProgress(w io.Writer, events <-chan session.Event) {
	var stage session.Stage
	for ev := range events {
		switch ev.Type {
		case session.EventStage:
			if stage != "" {
				fmt.Fprintln(w)
			}
			stage = ev.Stage
			drawBar(w, ev.Stage, ev.Progress)
		case session.EventProgress:
			drawBar(w, ev.Stage, ev.Progress)
		case session.EventComplete:
			drawBar(w, ev.Stage, 100)
			fmt.Fprintln(w)
			return
		case session.EventError:
			fmt.Fprintln(w)
			return
		}
	}
}

func drawBar(w io.Writer, stage session.Stage, progress int) {
	done := progress * progressBarWidth / 100
	if done > progressBarWidth {
		done = progressBarWidth
	}
	if done < 0 {
		done = 0
	}
	fmt.Fprintf(w, "\r[%s%s] %-18s %3d%%",
		strings.Repeat("=", done),
		strings.Repeat(" ", progressBarWidth-done),
		stage,
		progress,
	)
}

func printSummary(w io.Writer, report *models.SecurityReport, elapsed time.Duration) {
	stats := report.Summary.PasswordStats
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nVault Summary:")
	fmt.Fprintln(tw, "═══════════════════════════════════════════════════════════════")
	fmt.Fprintf(tw, "Items:\t%d (invalid %d, skipped %d)\n", report.Summary.TotalItems, report.Summary.InvalidItems, report.Summary.SkippedItems)
	fmt.Fprintf(tw, "Security Score:\t%d/100 (%s)\n", report.Score, report.ScoreLabel)
	fmt.Fprintf(tw, "Leaked:\t%d\n", stats.LeakedCount)
	fmt.Fprintf(tw, "Reused:\t%d\n", stats.DuplicateCount)
	fmt.Fprintf(tw, "Weak / Critical:\t%d / %d\n", stats.WeakCount, stats.CriticalCount)
	fmt.Fprintf(tw, "With 2FA:\t%d\n", stats.WithTOTPCount)
	if elapsed > 0 {
		fmt.Fprintf(tw, "Duration:\t%s\n", utils.HumanizeDuration(elapsed))
	}
	fmt.Fprintln(tw, "═══════════════════════════════════════════════════════════════")
	_ = tw.Flush()
}
