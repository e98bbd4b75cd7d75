package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"deskseed/internal/app"
	"deskseed/internal/config"
	"deskseed/internal/engine"
	"deskseed/internal/fakedesk"
	"deskseed/internal/journal"
	"deskseed/internal/report"
)

var rootCmd = &cobra.Command{
	Use:   "deskseed",
	Short: "Seed a service desk with realistic ticket activity",
	Long: `deskseed drives a roster of simulated actors against a service desk API.
Flows:
- tickets: log every actor in, create work items, assign a subset to two analysts and walk each
  analyst's worklist through a fixed mix of outcomes (closed, resolved, locked, in progress).
- kb: publish the knowledge base articles of the content corpus.
- surveys: answer the pending satisfaction surveys of closed tickets.
- sandbox: start an in-memory desk and run the flows against it.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	if path := viper.GetString("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", path, err)
		}
	}
	viper.SetEnvPrefix("DESKSEED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "YAML config file")
	flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("base-url", "", "service desk API base URL")
	flags.String("files", "", "directory of attachment files")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "log format (text or json)")
	flags.Uint64("seed", 0, "random seed; 0 picks one from the clock")
	flags.Int("items", 0, "work items to create in the tickets flow")
	flags.Int("taxonomy", 0, "size of the subcategory working set")
	flags.Bool("admin-assigns", false, "assign tickets with the administrator's session instead of analyst self-assignment")
	flags.String("journal", "", "sqlite journal path; empty keeps the journal in memory")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.Bool("no-pause", false, "disable pauses between remote calls")
	flags.Bool("json", false, "output JSON")
	for _, name := range []string{
		"config", "env-file", "base-url", "files", "log-level", "log-format", "seed",
		"items", "taxonomy", "admin-assigns", "journal", "metrics-addr", "no-pause", "json",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(flowCmd(engine.FlowTickets, "Create, assign and work tickets"))
	rootCmd.AddCommand(flowCmd(engine.FlowKB, "Publish knowledge base articles"))
	rootCmd.AddCommand(flowCmd(engine.FlowSurveys, "Answer pending satisfaction surveys"))
	rootCmd.AddCommand(sandboxCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(configCmd())
}

// loadConfig reads the config file and applies flag and environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if viper.IsSet("base-url") {
		cfg.API.BaseURL = viper.GetString("base-url")
	}
	if viper.IsSet("files") {
		cfg.Files.Path = viper.GetString("files")
	}
	if viper.IsSet("log-level") {
		cfg.Log.Level = viper.GetString("log-level")
	}
	if viper.IsSet("log-format") {
		cfg.Log.Format = viper.GetString("log-format")
	}
	if viper.IsSet("seed") {
		cfg.Run.Seed = viper.GetUint64("seed")
	}
	if viper.IsSet("items") {
		cfg.Run.Items = viper.GetInt("items")
	}
	if viper.IsSet("taxonomy") {
		cfg.Run.Taxonomy = viper.GetInt("taxonomy")
	}
	if viper.IsSet("admin-assigns") {
		cfg.Run.AdminAssigns = viper.GetBool("admin-assigns")
	}
	if viper.IsSet("journal") {
		cfg.Journal.Path = viper.GetString("journal")
	}
	if viper.IsSet("metrics-addr") {
		cfg.Metrics.Addr = viper.GetString("metrics-addr")
	}
	if pw := viper.GetString("password"); pw != "" {
		cfg.DefaultPassword = pw
	}
	return cfg, cfg.Validate()
}

func flowCmd(flow, short string) *cobra.Command {
	return &cobra.Command{
		Use:   flow,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runFlow(cmd.Context(), flow, cfg)
		},
	}
}

func runFlow(ctx context.Context, flow string, cfg *config.Config) error {
	s, err := app.Build(ctx, cfg, flow, app.Options{NoPause: viper.GetBool("no-pause")})
	if err != nil {
		return err
	}
	defer s.Close()
	if cfg.Metrics.Addr != "" {
		mctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if _, err := app.ServeMetrics(mctx, cfg.Metrics.Addr, s.Metrics, s.Log); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	rep, runErr := s.Run(ctx)
	ops, err := s.Summary(ctx)
	if err != nil {
		s.Log.WithError(err).Warn("journal summary unavailable")
	}
	if err := printReport(rep, ops); err != nil {
		return err
	}
	return runErr
}

type reportView struct {
	*engine.Report
	Failures []string            `json:"Failures"`
	Calls    []journal.OpSummary `json:"Calls"`
}

func printReport(rep *engine.Report, ops []journal.OpSummary) error {
	if rep == nil {
		return nil
	}
	if viper.GetBool("json") {
		v := reportView{Report: rep, Calls: ops}
		if rep.Failures != nil {
			for _, err := range rep.Failures.Errors {
				v.Failures = append(v.Failures, err.Error())
			}
		}
		return printJSON(v)
	}
	report.Render(os.Stdout, rep, ops)
	return nil
}

func sandboxCmd() *cobra.Command {
	var addr string
	var subcategories int
	var flows []string
	var keep bool
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run flows against an in-memory service desk",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := app.NewLogger(cfg.Log.Level, cfg.Log.Format, nil)
			if err != nil {
				return err
			}
			store := fakedesk.NewStore()
			fakedesk.Seed(store, cfg.DomainActors(), fakedesk.SeedOptions{
				Subcategories:       subcategories,
				InactiveEvery:       5,
				AnalystsAsEmployees: true,
			})
			sb, err := fakedesk.Start(addr, fakedesk.Config{
				Store: store,
				Auth:  fakedesk.AuthConfig{JWTSecret: sandboxSecret()},
				Log:   logger.WithField("component", "sandbox"),
			})
			if err != nil {
				return err
			}
			defer sb.Close()
			logger.WithField("url", sb.URL).Info("sandbox desk ready")
			cfg.API.BaseURL = sb.URL

			for _, flow := range flows {
				if err := runFlow(cmd.Context(), flow, cfg); err != nil {
					return fmt.Errorf("%s: %w", flow, err)
				}
			}
			if keep {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				fmt.Printf("Sandbox desk serving on %s (OpenAPI at /openapi.json); press Ctrl+C to stop\n", sb.URL)
				<-ctx.Done()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "listen address")
	cmd.Flags().IntVar(&subcategories, "subcategories", 25, "catalog size; every fifth entry is inactive")
	cmd.Flags().StringSliceVar(&flows, "flows", []string{engine.FlowTickets, engine.FlowSurveys, engine.FlowKB}, "flows to run in order")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep serving after the flows finish")
	return cmd
}

func sandboxSecret() string {
	if s := viper.GetString("sandbox-secret"); s != "" {
		return s
	}
	return "deskseed-sandbox"
}

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(func(cfg *config.Config) error {
				db, err := journal.Open(cfg.Journal.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				runs, err := journal.Runs(cmd.Context(), db, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(runs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Flow", "Seed", "Status", "Started", "Finished"})
				for _, r := range runs {
					tw.AppendRow(table.Row{r.ID, r.Flow, r.Seed, r.Status, r.StartedAt, r.FinishedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.AddCommand(runsShowCmd())
	return cmd
}

func runsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-operation call statistics of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(func(cfg *config.Config) error {
				db, err := journal.Open(cfg.Journal.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				run, err := journal.GetRun(cmd.Context(), db, args[0])
				if err != nil {
					return err
				}
				ops, err := journal.Summary(cmd.Context(), db, run.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"run": run, "calls": ops})
				}
				report.Render(os.Stdout, &engine.Report{RunID: run.ID, Flow: run.Flow, Seed: run.Seed}, ops)
				return nil
			})
		},
	}
}

func withJournal(fn func(cfg *config.Config) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Journal.Path == "" {
		return fmt.Errorf("no journal configured; set journal.path or --journal")
	}
	return fn(cfg)
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "template",
		Short: "Print the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.Template())
			return nil
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("config ok: %d actors, base URL %s\n", len(cfg.Actors), cfg.API.BaseURL)
			return nil
		},
	})
	return cfgCmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
