package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"timerlint/internal/app"
	"timerlint/internal/config"
	"timerlint/internal/report"
	"timerlint/internal/scan"
	"timerlint/internal/schedule"
	logx "timerlint/pkg/logx"
)

// loadConfig reads --config when given and applies --log-level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.NewConfigManager(path).Load()
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

// cliLogger logs to stderr so stdout stays machine-readable.
func cliLogger(cfg *config.Config) logx.Logger {
	lvl := cfg.Logging.Level
	if lvl == "" {
		lvl = "warn"
	}
	return logx.NewConsole(lvl)
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [expression...]",
		Short: "Validate schedule expressions (reads one per line from stdin when none are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tz") {
				cfg.Schedule.Timezone, _ = cmd.Flags().GetString("tz")
			}
			if cmd.Flags().Changed("24h") {
				cfg.Schedule.Use24h, _ = cmd.Flags().GetBool("24h")
			}
			format, err := report.ParseFormat(mustString(cmd, "format"))
			if err != nil {
				return err
			}
			next, _ := cmd.Flags().GetInt("next")

			v, err := app.NewValidator(cfg, cliLogger(cfg))
			if err != nil {
				return err
			}

			exprs := args
			if len(exprs) == 0 {
				if exprs, err = readLines(cmd); err != nil {
					return err
				}
			}

			now := time.Now()
			results := make([]report.Result, 0, len(exprs))
			invalid := false
			for _, expr := range exprs {
				r := report.Check(v, expr, next, now)
				invalid = invalid || r.Outcome.Kind == schedule.Invalid
				results = append(results, r)
			}
			if err := report.WriteResults(cmd.OutOrStdout(), format, results); err != nil {
				return err
			}
			if invalid {
				return errProblems
			}
			return nil
		},
	}
	cmd.Flags().Int("next", 0, "Also print the next N occurrences of valid schedules")
	cmd.Flags().String("tz", "", "Timezone for occurrences (IANA name; default local)")
	cmd.Flags().Bool("24h", false, "Use 24-hour times in descriptions")
	cmd.Flags().String("format", "text", "Output format: text or json")
	return cmd
}

func readLines(cmd *cobra.Command) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [path...]",
		Short: "Scan source trees for timer triggers and report schedule problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Scan.Roots = args
			}
			if inc, _ := cmd.Flags().GetStringSlice("include"); len(inc) > 0 {
				cfg.Scan.Include = inc
			}
			if exc, _ := cmd.Flags().GetStringSlice("exclude"); len(exc) > 0 {
				cfg.Scan.Exclude = exc
			}
			format, err := report.ParseFormat(mustString(cmd, "format"))
			if err != nil {
				return err
			}

			log := cliLogger(cfg)
			v, err := app.NewValidator(cfg, log)
			if err != nil {
				return err
			}
			cands, err := app.NewScanner(cfg, log).ScanTree(cmd.Context(), cfg.Scan.Roots)
			if err != nil {
				return err
			}
			findings := scan.Check(v, cands)

			out := cmd.OutOrStdout()
			if err := report.WriteFindings(out, format, findings); err != nil {
				return err
			}
			if format == report.FormatText {
				if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
					cmd.PrintErrln(report.Summary(findings))
				}
			}
			if scan.Counts(findings)[scan.SeverityError] > 0 {
				return errProblems
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("include", nil, "File name patterns to scan (default *.cs,*.fs,*.csx,function.json)")
	cmd.Flags().StringSlice("exclude", nil, "Directory names to skip (default bin,obj,.git,.vs,.idea,node_modules)")
	cmd.Flags().String("format", "text", "Output format: text or json")
	cmd.Flags().BoolP("quiet", "q", false, "Suppress the summary line")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan the configured roots on change and log new or resolved problems",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return runApp(cmd, app.Options{Mode: app.ModeWatch, HTTPAddr: addr})
		},
	}
	cmd.Flags().String("addr", "", "Serve the HTTP API on this address (overrides http.addr)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return runApp(cmd, app.Options{Mode: app.ModeServe, HTTPAddr: addr})
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	return cmd
}

func runApp(cmd *cobra.Command, opts app.Options) error {
	path, _ := cmd.Flags().GetString("config")
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(path, opts)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		return err
	}
	return a.Err()
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}
