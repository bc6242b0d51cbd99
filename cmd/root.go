package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/auth"
	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/config"
	"github.com/AlfredBerg/green-scraper/internal/crawl"
	"github.com/AlfredBerg/green-scraper/internal/credentials"
	"github.com/AlfredBerg/green-scraper/internal/extract"
	"github.com/AlfredBerg/green-scraper/internal/logging"
	"github.com/AlfredBerg/green-scraper/internal/outputHandlers/sqlite"
	"github.com/AlfredBerg/green-scraper/internal/outputHandlers/summary"
	"github.com/AlfredBerg/green-scraper/internal/outputHandlers/xlsx"
)

var cfgFile string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.green-scraper.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "scraping.log", "Log file, empty logs to stderr only")

	f := rootCmd.Flags()
	f.Bool("headless", false, "Run Chrome without a window")
	f.StringP("strategy", "s", "direct", "Login strategy: direct (email and password) or google")
	f.Bool("use-profile", false, "Reuse a Chrome profile so an existing login is picked up")
	f.String("profile-path", "", "Chrome user data directory")
	f.String("profile-name", "Default", "Profile directory inside the user data directory")
	f.Int("remote-debug-port", 0, "Attach to the Chrome listening on this port, or launch one on it")
	f.String("chrome-bin", "", "Chrome executable, found or downloaded when empty")
	f.Int("max-retries", 2, "Retries of the listing collection")
	f.Int("retry-delay", 5, "Seconds between collection retries")
	f.Int("max-records", 0, "Visit at most this many detail pages, 0 visits all")
	f.StringSliceP("output", "o", []string{"xlsx", "table"}, "Outputs: xlsx, sqlite, table. Can be specified multiple times")
	f.String("output-dir", "", "Spreadsheet directory (default output_<YYYYMMDD>)")
	f.String("sqlite", "green.db", "sqlite database for the sqlite output")
	f.String("marker-text", "", "Text of the header marker shown when logged in, empty disables the check")
	f.Bool("no-prompt", false, "Never prompt for missing credentials")

	bind := map[string]string{
		"log_level":             "log-level",
		"log_file":              "log-file",
		"headless":              "headless",
		"strategy":              "strategy",
		"use_reusable_profile":  "use-profile",
		"profile_path":          "profile-path",
		"profile_name":          "profile-name",
		"remote_debug_port":     "remote-debug-port",
		"chrome_bin":            "chrome-bin",
		"max_retries":           "max-retries",
		"retry_delay_seconds":   "retry-delay",
		"max_records":           "max-records",
		"outputs":               "output",
		"output_dir":            "output-dir",
		"sqlite_path":           "sqlite",
		"logged_in_marker.text": "marker-text",
	}
	for key, name := range bind {
		flag := rootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			flag = f.Lookup(name)
		}
		cobra.CheckErr(viper.BindPFlag(key, flag))
	}
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Failed reading .env:", err)
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".green-scraper" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".green-scraper")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

var rootCmd = &cobra.Command{
	Use:   "green-scraper",
	Short: "Export the jobs saved as favorites on green-japan.com to a spreadsheet",

	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
			viper.Set("interactive", false)
		}
		return scrape(cmd.Context())
	},
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

func scrape(ctx context.Context) (err error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handlers, cleanup, err := outputHandlers(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			log.Error("failed finishing outputs", zap.Error(cerr))
			err = multierr.Append(err, cerr)
		}
	}()

	session, err := browser.Launch(ctx, browser.LaunchOptions{
		Headless:         cfg.Headless,
		Bin:              cfg.ChromeBin,
		UseProfile:       cfg.UseReusableProfile,
		ProfilePath:      cfg.ProfilePath,
		ProfileName:      cfg.ProfileName,
		RemoteDebugPort:  cfg.RemoteDebugPort,
		OperationTimeout: cfg.OperationTimeout(),
	}, log)
	if err != nil {
		log.Error("failed starting browser", zap.Error(err))
		return err
	}

	var ui credentials.Asker
	if cfg.Interactive {
		ui = input.DefaultUI()
	}
	creds := credentials.NewSource(cfg.CredentialMap(), cfg.UseKeyring, ui, log)

	authOpts := auth.DefaultOptions(cfg.BaseURL)
	authOpts.LoginPath = cfg.LoginPath
	authOpts.ScreenshotDir = cfg.ScreenshotDir
	indicator := auth.MarkerIndicator{Marker: browser.ByCSS(cfg.LoggedInMarker.Selector), Text: cfg.LoggedInMarker.Text}

	collector := crawl.NewCollector(log)
	collector.ScrollPause = cfg.ScrollPause()
	collector.MaxScrolls = cfg.MaxScrolls

	j := crawl.Job{
		Session:        session,
		Auth:           auth.NewManager(authOpts, indicator, creds, log),
		Strategy:       cfg.AuthStrategy(),
		Collector:      collector,
		Extractor:      extract.New(log),
		ListingURL:     cfg.ListingURL(),
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay(),
		MaxRecords:     cfg.MaxRecords,
		OutputHandlers: handlers,
		Logger:         log,
	}
	res, err := j.Crawl(ctx)

	var se *crawl.StageError
	if errors.As(err, &se) {
		fmt.Fprintf(os.Stderr, "Run %s failed at the %s stage: %v\n", res.RunID, se.Stage, se.Err)
	}
	fmt.Fprintf(os.Stderr, "%d records extracted, %d discovered, %d failed\n", len(res.Records), res.Discovered, res.Failed)
	return err
}

func outputHandlers(cfg config.Config, log *zap.Logger) ([]crawl.OutputHandler, func() error, error) {
	var handlers []crawl.OutputHandler
	cleanup := func() error { return nil }
	for _, o := range cfg.Outputs {
		switch o {
		case "xlsx":
			handlers = append(handlers, xlsx.New(cfg.OutputDir, log))
		case "table":
			handlers = append(handlers, summary.New())
		case "sqlite":
			db := &sqlite.SqliteOutput{Database: cfg.SqlitePath}
			if err := db.Init(); err != nil {
				return nil, nil, fmt.Errorf("failed opening %s: %w", cfg.SqlitePath, err)
			}
			handlers = append(handlers, db)
			cleanup = db.Cleanup
		}
	}
	return handlers, cleanup, nil
}
