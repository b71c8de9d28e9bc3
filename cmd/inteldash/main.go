package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/IntelDash/internal/categorize"
	"github.com/TobiSchelling/IntelDash/internal/config"
	"github.com/TobiSchelling/IntelDash/internal/filter"
	"github.com/TobiSchelling/IntelDash/internal/logger"
	"github.com/TobiSchelling/IntelDash/internal/metrics"
	"github.com/TobiSchelling/IntelDash/internal/pipeline"
	"github.com/TobiSchelling/IntelDash/internal/present"
	"github.com/TobiSchelling/IntelDash/internal/server"
	"github.com/TobiSchelling/IntelDash/internal/taxonomy"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	log        *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "inteldash",
	Short:   "Company news intelligence dashboard",
	Long:    "IntelDash searches news for tracked companies, tags each item by keyword category, and serves a filterable dashboard.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; it only supplies INTELDASH_* overrides.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			log = logger.New("INFO", os.Stderr)
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "DEBUG"
		}
		log = logger.New(level, os.Stderr)
		log.Debug("config loaded", "path", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(digestCmd)
	rootCmd.AddCommand(taxonomyCmd)
	rootCmd.AddCommand(categorizeCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("inteldash", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/inteldash/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure tracked companies, categories and sections.")
		return nil
	},
}

// --- shared filter flags ---

type criteriaFlags struct {
	group       string
	competitors bool
	window      string
	search      string
	categories  []string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.group, "group", "g", taxonomy.ScopeAll, "Group to show (or 'all')")
	cmd.Flags().BoolVar(&f.competitors, "competitors", false, "Include competitors of the group's members")
	cmd.Flags().StringVarP(&f.window, "window", "w", "", "Recency window: 24h, 7d, 30d or all (default from config)")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Case-insensitive search on title or company")
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "Only show these categories (repeatable)")
}

func (f *criteriaFlags) criteria() (filter.Criteria, error) {
	raw := f.window
	if raw == "" {
		raw = cfg.Presentation.DefaultWindow
	}
	w, err := filter.ParseWindow(raw)
	if err != nil {
		return filter.Criteria{}, err
	}
	return filter.Criteria{
		Scope:           f.group,
		WithCompetitors: f.competitors,
		Window:          w,
		Search:          f.search,
		Categories:      f.categories,
	}, nil
}

func runOnce(ctx context.Context, f *criteriaFlags) (*pipeline.Result, error) {
	c, err := f.criteria()
	if err != nil {
		return nil, err
	}
	pipe, err := pipeline.FromConfig(cfg, nil, log, nil)
	if err != nil {
		return nil, err
	}
	return pipe.Run(ctx, c)
}

// --- fetch command ---

var (
	fetchFlags criteriaFlags
	fetchJSON  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one refresh cycle and print the matching news",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		result, err := runOnce(ctx, &fetchFlags)
		if err != nil {
			return err
		}

		if fetchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.View)
		}

		for i, step := range result.Steps {
			fmt.Printf("Step %d/%d: %s\n  %s\n", i+1, len(result.Steps), step.Name, step.Summary)
		}
		if len(result.Failures) > 0 {
			fmt.Printf("\nWarning: could not fetch news for %s\n", strings.Join(result.FailedNames(), ", "))
		}
		fmt.Println()

		if result.View.Empty() {
			fmt.Println("No results for the selected filters.")
			return nil
		}
		printView(result.View)
		return nil
	},
}

func init() {
	fetchFlags.register(fetchCmd)
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "Print the grouped view as JSON")
}

func printView(v present.View) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	for _, s := range v.Sections {
		if s.Count == 0 {
			continue
		}
		fmt.Fprintf(tw, "== %s (%d)\n", s.Name, s.Count)
		for _, c := range s.Categories {
			fmt.Fprintf(tw, "-- %s\n", c.Label)
			for _, r := range c.Records {
				date := "undated"
				if r.PublishedAt != nil {
					date = r.PublishedAt.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", date, r.Source, r.Title)
			}
		}
		fmt.Fprintln(tw)
	}
}

// --- digest command ---

var (
	digestFlags  criteriaFlags
	digestOutput string
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Run one refresh cycle and write a Markdown digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		result, err := runOnce(ctx, &digestFlags)
		if err != nil {
			return err
		}
		digest := present.Markdown(result.View, result.Meta(cfg.Presentation.Title))

		if digestOutput == "" {
			fmt.Print(digest)
			return nil
		}
		if err := os.WriteFile(digestOutput, []byte(digest), 0o644); err != nil {
			return fmt.Errorf("writing digest: %w", err)
		}
		fmt.Printf("Wrote digest: %s (%d results)\n", digestOutput, result.View.Total)
		return nil
	},
}

func init() {
	digestFlags.register(digestCmd)
	digestCmd.Flags().StringVarP(&digestOutput, "output", "o", "", "Write the digest to a file instead of stdout")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		pipe, err := pipeline.FromConfig(cfg, nil, log, metrics.New(reg))
		if err != nil {
			return err
		}
		defaultWindow, err := filter.ParseWindow(cfg.Presentation.DefaultWindow)
		if err != nil {
			return err
		}
		srv, err := server.New(pipe, server.Options{
			Title:         cfg.Presentation.Title,
			DefaultWindow: defaultWindow,
			Gatherer:      reg,
			Logger:        log,
		})
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- taxonomy command ---

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Show tracked groups, competitors, categories and sections",
	RunE: func(cmd *cobra.Command, args []string) error {
		tax, err := cfg.BuildTaxonomy()
		if err != nil {
			return err
		}
		layout, err := cfg.BuildLayout(tax)
		if err != nil {
			return err
		}

		fmt.Println("Groups:")
		for _, name := range tax.Groups() {
			g, _ := tax.Group(name)
			fmt.Printf("  %s (%d)\n", g.Name, len(g.Entities))
			for _, e := range g.Entities {
				if comps := tax.Competitors(e); len(comps) > 0 {
					fmt.Printf("    %s  vs. %s\n", e, strings.Join(comps, ", "))
				} else {
					fmt.Printf("    %s\n", e)
				}
			}
		}

		fmt.Println("\nCategories:")
		for _, c := range tax.Categories() {
			fmt.Printf("  %s: %s\n", c.Label, strings.Join(c.Keywords, ", "))
		}

		fmt.Println("\nSections:")
		for _, s := range layout.Sections() {
			fmt.Printf("  %s: %s\n", s.Name, strings.Join(s.Categories, ", "))
		}
		return nil
	},
}

// --- categorize command ---

var categorizeCmd = &cobra.Command{
	Use:   "categorize [text...]",
	Short: "Show the categories assigned to a piece of text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tax, err := cfg.BuildTaxonomy()
		if err != nil {
			return err
		}
		labels := categorize.New(tax).Categorize(strings.Join(args, " "))
		fmt.Println(labels.String())
		return nil
	},
}
