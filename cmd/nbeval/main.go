package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fractal-lba/nbeval/internal/config"
	"github.com/fractal-lba/nbeval/pkg/otel"
)

var (
	// Global flags
	configFile string
	envFile    string
	verbose    bool
	noColor    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nbeval",
		Short: "Evaluate a Naive Bayes text classifier on a labeled two-class corpus",
		Long: `Builds bag-of-words, TF-IDF and bigram document-term matrices from a labeled
corpus, fits a multinomial Naive Bayes classifier and reports holdout and
stratified k-fold cross-validation metrics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Run config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before NBEVAL_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(tokenizeCmd())
	rootCmd.AddCommand(termsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnvFile loads path into the environment. A missing default file is
// not an error; a missing file named on the command line is.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig applies file, then environment, in that order.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

func newLogger() *log.Logger {
	if !verbose {
		return nil
	}
	return log.New(os.Stderr, "nbeval: ", log.LstdFlags)
}

// initTracing starts an OTLP exporter when OTEL_ENDPOINT is set. The
// returned func flushes it.
func initTracing(ctx context.Context, logger *log.Logger) func() {
	endpoint := os.Getenv("OTEL_ENDPOINT")
	if endpoint == "" {
		return func() {}
	}

	cfg := otel.DefaultConfig("nbeval")
	cfg.CollectorEndpoint = endpoint
	tp, err := otel.InitTracer(ctx, cfg)
	if err != nil {
		if logger != nil {
			logger.Printf("Tracing disabled: %v", err)
		}
		return func() {}
	}
	return func() {
		if err := otel.Shutdown(context.Background(), tp); err != nil && logger != nil {
			logger.Printf("Tracer shutdown: %v", err)
		}
	}
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
