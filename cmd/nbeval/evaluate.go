package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fractal-lba/nbeval/internal/cache"
	"github.com/fractal-lba/nbeval/internal/config"
	"github.com/fractal-lba/nbeval/internal/corpus"
	"github.com/fractal-lba/nbeval/internal/pipeline"
	"github.com/fractal-lba/nbeval/pkg/text"
)

// runFlags override config values when set on the command line.
type runFlags struct {
	seed            int64
	folds           int
	alpha           float64
	trainFraction   float64
	positive        string
	jobs            int
	representations []string
	topTerms        int
	bowMinTermFreq  int
	bigramMinTF     int
	noStopWords     bool
	noStemming      bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Int64Var(&f.seed, "seed", 42, "Random seed for the holdout split and fold assignment")
	fl.IntVarP(&f.folds, "folds", "k", 10, "Number of cross-validation folds")
	fl.Float64Var(&f.alpha, "alpha", 1, "Additive smoothing")
	fl.Float64Var(&f.trainFraction, "train-fraction", 0.5, "Holdout training fraction per class")
	fl.StringVar(&f.positive, "positive", "", "Label of the positive class (default: lexicographically larger label)")
	fl.IntVarP(&f.jobs, "jobs", "j", 0, "Concurrent folds (default: GOMAXPROCS)")
	fl.StringSliceVarP(&f.representations, "representations", "r", nil, "Representations to evaluate (bow, tfidf, bigram)")
	fl.IntVar(&f.topTerms, "top-terms", 10, "Top terms reported per class (0 disables)")
	fl.IntVar(&f.bowMinTermFreq, "bow-min-term-freq", 5, "Minimum corpus frequency for unigram terms")
	fl.IntVar(&f.bigramMinTF, "bigram-min-term-freq", 2, "Minimum corpus frequency for bigram terms")
	fl.BoolVar(&f.noStopWords, "no-stop-words", false, "Keep stop words")
	fl.BoolVar(&f.noStemming, "no-stemming", false, "Disable stemming")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	r := &cfg.Run
	if fl.Changed("seed") {
		r.Seed = f.seed
	}
	if fl.Changed("folds") {
		r.Folds = f.folds
	}
	if fl.Changed("alpha") {
		r.Alpha = f.alpha
	}
	if fl.Changed("train-fraction") {
		r.TrainFraction = f.trainFraction
	}
	if fl.Changed("positive") {
		r.Positive = f.positive
	}
	if fl.Changed("jobs") {
		r.Jobs = f.jobs
	}
	if fl.Changed("representations") {
		r.Representations = f.representations
	}
	if fl.Changed("top-terms") {
		r.TopTerms = f.topTerms
	}
	if fl.Changed("bow-min-term-freq") {
		r.BagOfWords.MinTermFreq = f.bowMinTermFreq
	}
	if fl.Changed("bigram-min-term-freq") {
		r.Bigram.MinTermFreq = f.bigramMinTF
	}
	if f.noStopWords {
		r.StopWords = false
	}
	if f.noStemming {
		r.Stemming = false
	}
}

// resolveConfig merges file, environment and flags and validates the result.
func (f *runFlags) resolveConfig(cmd *cobra.Command) (pipeline.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return pipeline.Config{}, err
	}
	f.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg.Pipeline(), nil
}

func evaluateCmd() *cobra.Command {
	var (
		flags   runFlags
		asJSON  bool
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "evaluate <corpus>",
		Short: "Run holdout and cross-validation evaluation over a corpus",
		Long: `Loads a corpus (a .json/.jsonl/.csv file, or a directory with one
subdirectory of .txt files per label) and evaluates every configured
representation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := flags.resolveConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			docs, err := corpus.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load corpus: %w", err)
			}

			logger := newLogger()
			defer initTracing(ctx, logger)()

			tc, err := cache.NewTokenCache(text.NewTokenizer(cfg.StopWords, cfg.Stemming, 2), cache.DefaultSize)
			if err != nil {
				return err
			}

			runner := pipeline.New(cfg)
			runner.Logger = logger
			runner.Cache = tc

			report, err := runner.Run(ctx, docs)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			var out io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer closeQuietly(f)
				out = f
			}

			if asJSON || outPath != "" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				if outPath != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", outPath)
				}
				return nil
			}

			renderReport(out, report)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the JSON report to a file")

	return cmd
}

func tokenizeCmd() *cobra.Command {
	var (
		noStopWords bool
		noStemming  bool
		bigrams     bool
	)

	cmd := &cobra.Command{
		Use:   "tokenize [text...]",
		Short: "Show the tokens (and optionally bigrams) produced for some text",
		Long:  `Tokenizes the arguments, or standard input when no arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				input = string(data)
			}

			tok := text.NewTokenizer(!noStopWords, !noStemming, 2)
			tokens := tok.Tokenize(input)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", heading.Sprint("tokens:"), strings.Join(tokens, " "))
			if bigrams {
				fmt.Fprintf(out, "%s %s\n", heading.Sprint("bigrams:"), strings.Join(tok.NGrams(tokens), " "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noStopWords, "no-stop-words", false, "Keep stop words")
	cmd.Flags().BoolVar(&noStemming, "no-stemming", false, "Disable stemming")
	cmd.Flags().BoolVar(&bigrams, "bigrams", false, "Also print bigrams")

	return cmd
}

func termsCmd() *cobra.Command {
	var (
		flags          runFlags
		representation string
	)

	cmd := &cobra.Command{
		Use:   "terms <corpus>",
		Short: "List the heaviest terms of each class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolveConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			docs, err := corpus.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load corpus: %w", err)
			}

			runner := pipeline.New(cfg)
			runner.Logger = newLogger()

			rep := pipeline.Representation(representation)
			m, labels, classes, err := runner.Matrix(docs, rep)
			if err != nil {
				return err
			}

			renderTerms(cmd.OutOrStdout(), rep, m, labels, classes, cfg.TopTerms)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&representation, "representation", string(pipeline.BagOfWords), "Representation (bow, tfidf, bigram)")

	return cmd
}
