// Package config loads run settings from a TOML file and NBEVAL_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/fractal-lba/nbeval/internal/dtm"
	"github.com/fractal-lba/nbeval/internal/pipeline"
)

var (
	// ErrRunSectionMissing is returned for a config file without a [run] table.
	ErrRunSectionMissing = errors.New("config: missing [run] section")
	// ErrUnknownKey is returned for keys the config does not define.
	ErrUnknownKey = errors.New("config: unknown key")
)

// Config is the on-disk layout of a run configuration.
type Config struct {
	Run Run `toml:"run"`
}

// Trim is a trimming policy table.
type Trim struct {
	MinTermFreq int `toml:"min_term_freq" json:"min_term_freq,omitempty"`
	MinDocFreq  int `toml:"min_doc_freq" json:"min_doc_freq,omitempty"`
}

// Run holds the [run] table.
type Run struct {
	StopWords       bool     `toml:"stop_words" json:"stop_words,omitempty"`
	Stemming        bool     `toml:"stemming" json:"stemming,omitempty"`
	BagOfWords      Trim     `toml:"bow" json:"bow,omitempty"`
	Bigram          Trim     `toml:"bigram" json:"bigram,omitempty"`
	TrainFraction   float64  `toml:"train_fraction" json:"train_fraction,omitempty"`
	Folds           int      `toml:"folds" json:"folds,omitempty"`
	Alpha           float64  `toml:"alpha" json:"alpha,omitempty"`
	Seed            int64    `toml:"seed" json:"seed,omitempty"`
	Positive        string   `toml:"positive" json:"positive,omitempty"`
	Jobs            int      `toml:"jobs" json:"jobs,omitempty"`
	Representations []string `toml:"representations" json:"representations,omitempty"`
	TopTerms        int      `toml:"top_terms" json:"top_terms,omitempty"`
}

// Default mirrors pipeline.DefaultConfig.
func Default() Config {
	return FromPipeline(pipeline.DefaultConfig())
}

// FromPipeline converts pipeline settings into the file layout.
func FromPipeline(p pipeline.Config) Config {
	reps := make([]string, len(p.Representations))
	for i, r := range p.Representations {
		reps[i] = string(r)
	}
	return Config{Run: Run{
		StopWords:       p.StopWords,
		Stemming:        p.Stemming,
		BagOfWords:      Trim(p.BagOfWordsTrim),
		Bigram:          Trim(p.BigramTrim),
		TrainFraction:   p.TrainFraction,
		Folds:           p.Folds,
		Alpha:           p.Alpha,
		Seed:            p.Seed,
		Positive:        p.Positive,
		Jobs:            p.Jobs,
		Representations: reps,
		TopTerms:        p.TopTerms,
	}}
}

// Load reads path over the defaults; keys absent from the file keep their
// default values. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("run") {
		return Config{}, fmt.Errorf("%s: %w", path, ErrRunSectionMissing)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: %w: %s", path, ErrUnknownKey, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ApplyEnv overrides settings from NBEVAL_* variables. Unset or empty
// variables leave the current value.
func (c *Config) ApplyEnv() error {
	r := &c.Run
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(envBool("NBEVAL_STOP_WORDS", &r.StopWords))
	collect(envBool("NBEVAL_STEMMING", &r.Stemming))
	collect(envInt("NBEVAL_BOW_MIN_TERM_FREQ", &r.BagOfWords.MinTermFreq))
	collect(envInt("NBEVAL_BOW_MIN_DOC_FREQ", &r.BagOfWords.MinDocFreq))
	collect(envInt("NBEVAL_BIGRAM_MIN_TERM_FREQ", &r.Bigram.MinTermFreq))
	collect(envInt("NBEVAL_BIGRAM_MIN_DOC_FREQ", &r.Bigram.MinDocFreq))
	collect(envFloat("NBEVAL_TRAIN_FRACTION", &r.TrainFraction))
	collect(envInt("NBEVAL_FOLDS", &r.Folds))
	collect(envFloat("NBEVAL_ALPHA", &r.Alpha))
	collect(envInt64("NBEVAL_SEED", &r.Seed))
	collect(envInt("NBEVAL_JOBS", &r.Jobs))
	collect(envInt("NBEVAL_TOP_TERMS", &r.TopTerms))

	r.Positive = getEnv("NBEVAL_POSITIVE", r.Positive)
	if v := getEnv("NBEVAL_REPRESENTATIONS", ""); v != "" {
		r.Representations = splitList(v)
	}

	return errors.Join(errs...)
}

// Pipeline converts the file layout into pipeline settings.
func (c Config) Pipeline() pipeline.Config {
	r := c.Run
	reps := make([]pipeline.Representation, len(r.Representations))
	for i, s := range r.Representations {
		reps[i] = pipeline.Representation(strings.ToLower(strings.TrimSpace(s)))
	}
	return pipeline.Config{
		StopWords:       r.StopWords,
		Stemming:        r.Stemming,
		BagOfWordsTrim:  dtm.TrimPolicy(r.BagOfWords),
		BigramTrim:      dtm.TrimPolicy(r.Bigram),
		TrainFraction:   r.TrainFraction,
		Folds:           r.Folds,
		Alpha:           r.Alpha,
		Seed:            r.Seed,
		Positive:        r.Positive,
		Jobs:            r.Jobs,
		Representations: reps,
		TopTerms:        r.TopTerms,
	}
}

// Validate checks the converted pipeline settings.
func (c Config) Validate() error {
	return c.Pipeline().Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, dst *int) error {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = i
	}
	return nil
}

func envInt64(key string, dst *int64) error {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = i
	}
	return nil
}

func envFloat(key string, dst *float64) error {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
	}
	return nil
}

func envBool(key string, dst *bool) error {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
