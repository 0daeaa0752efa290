package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/internal/app"
	"github.com/yourusername/sharefetch-go/internal/domain"
	"github.com/yourusername/sharefetch-go/internal/infrastructure"
	"github.com/yourusername/sharefetch-go/pkg/logger"
)

const version = "1.0.0"

var (
	configPath string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "sharefetch",
		Short: "Fetch the highest-quality images behind cloud share links",
		Long: `sharefetch acquires the best available image bytes behind consumer
cloud share links (iCloud, Dropbox, Google Photos, Google Drive),
falling back through progressively lossier capture methods when the
preferred ones fail.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(versionCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Acquire the image(s) behind a share link",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rawURL := args[0]

		all, _ := cmd.Flags().GetBool("all")
		resume, _ := cmd.Flags().GetBool("resume")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		output, _ := cmd.Flags().GetString("output")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		jobs, _ := cmd.Flags().GetInt("jobs")
		rateLimit, _ := cmd.Flags().GetFloat64("rate-limit")
		browserFallback, _ := cmd.Flags().GetBool("browser-fallback")
		debugDir, _ := cmd.Flags().GetString("debug-dir")
		includeNonImage, _ := cmd.Flags().GetBool("include-non-image")

		config := loadConfigOrExit()
		if output != "" {
			config.Fetch.OutputDir = output
		}
		if timeout > 0 {
			config.Fetch.Timeout = timeout
		}
		if cmd.Flags().Changed("jobs") {
			config.Batch.Jobs = jobs
		}
		if cmd.Flags().Changed("rate-limit") {
			config.Batch.RateLimit = rateLimit
		}
		if cmd.Flags().Changed("browser-fallback") {
			config.Fetch.BrowserFallback = browserFallback
		}
		if debugDir != "" {
			config.Fetch.DebugDir = debugDir
		}
		if cmd.Flags().Changed("include-non-image") {
			config.Fetch.IncludeNonImageMedia = includeNonImage
		}

		log := newLoggerOrExit(config)
		defer log.Sync()

		sess, err := infrastructure.NewSessionContext(config.Fetch, config.Batch, config.Browser, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(domain.ErrInternal.ExitCode())
		}
		defer sess.Close()

		var manifest domain.ManifestStore
		if all {
			manifest, err = infrastructure.NewSQLiteManifestStore(config.Batch.ManifestPath)
			if err != nil {
				log.Warn("Manifest unavailable, resume disabled", zap.Error(err))
			} else {
				defer manifest.Close()
			}
		}

		registry := infrastructure.NewRegistry(sess, log)
		engine := app.NewEngine(config, sess, registry, manifest, log)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		records, err := engine.Acquire(ctx, rawURL, app.AcquireOptions{All: all, Resume: resume})
		if err != nil {
			env := domain.AsEnvelope(err)
			fmt.Fprintf(os.Stderr, "Error: %s\n", env.Message)
			if env.Remediation != "" {
				fmt.Fprintf(os.Stderr, "Hint: %s\n", env.Remediation)
			}
			os.Exit(env.Code.ExitCode())
		}

		printRecords(records, jsonOutput)
		os.Exit(exitCodeFor(records))
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect [url]",
	Short: "Report which platform owns a URL, without any network I/O",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := loadConfigOrExit()
		log := newLoggerOrExit(config)
		defer log.Sync()

		// Detection is purely syntactic, the session never starts a browser.
		sess, err := infrastructure.NewSessionContext(config.Fetch, config.Batch, config.Browser, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(domain.ErrInternal.ExitCode())
		}
		defer sess.Close()

		registry := infrastructure.NewRegistry(sess, log)
		platform := registry.Detect(args[0])
		if platform == domain.PlatformUnknown {
			fmt.Println("unknown")
			os.Exit(domain.ErrUsage.ExitCode())
		}

		adapter, _ := registry.Adapter(platform)
		fmt.Printf("%s\t%s\n", platform, adapter.Normalize(args[0]))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sharefetch %s\n", version)
	},
}

func init() {
	fetchCmd.Flags().BoolP("all", "a", false, "Acquire every member of an album/folder link")
	fetchCmd.Flags().StringP("output", "o", "", "Output directory (default from config)")
	fetchCmd.Flags().Duration("timeout", 0, "Per-item time budget (e.g. 90s)")
	fetchCmd.Flags().IntP("jobs", "j", 1, "Concurrent workers for album acquisition")
	fetchCmd.Flags().Float64("rate-limit", 1.0, "Network requests per second during album runs")
	fetchCmd.Flags().Bool("browser-fallback", false, "Allow opt-in browser capture methods")
	fetchCmd.Flags().String("debug-dir", "", "Persist failed attempt payloads to this directory")
	fetchCmd.Flags().Bool("include-non-image", false, "Accept video and other non-image media")
	fetchCmd.Flags().Bool("resume", false, "Resume a previously interrupted album run")
	fetchCmd.Flags().Bool("json", false, "Emit one JSON record per item on stdout")
}

func loadConfigOrExit() *domain.Config {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(domain.ErrUsage.ExitCode())
	}
	return config
}

func newLoggerOrExit(config *domain.Config) *zap.Logger {
	cfg := logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	}
	if verbose {
		cfg.Level = "debug"
	}
	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		os.Exit(domain.ErrInternal.ExitCode())
	}
	return log
}

// printRecords writes one line per item to stdout, in item index order.
func printRecords(records []domain.ResultRecord, jsonOutput bool) {
	enc := json.NewEncoder(os.Stdout)
	for _, rec := range records {
		if jsonOutput {
			enc.Encode(rec)
			continue
		}
		if rec.OK {
			preview := ""
			if rec.IsPreview {
				preview = " (preview)"
			}
			fmt.Printf("ok\t%d\t%s\ttier=%d\t%s%s\n",
				rec.ItemIndex, rec.Method, rec.Tier, rec.Path, preview)
		} else {
			fmt.Printf("fail\t%d\t%s\t%s\n",
				rec.ItemIndex, rec.Error.Code, rec.Error.Message)
		}
	}
}

// exitCodeFor maps a batch outcome to the process exit code: 0 when every
// item succeeded, otherwise the code of the most specific failure.
func exitCodeFor(records []domain.ResultRecord) int {
	var worst *domain.Envelope
	for i := range records {
		rec := records[i]
		if rec.OK || rec.Error == nil {
			continue
		}
		if rec.Error.MoreSpecificThan(worst) {
			worst = rec.Error
		}
	}
	if worst == nil {
		return 0
	}
	return worst.Code.ExitCode()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(domain.ErrUsage.ExitCode())
	}
}
