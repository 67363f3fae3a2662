package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fractal-lba/nbeval/internal/pipeline"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nbeval.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultMatchesPipeline(t *testing.T) {
	got := Default().Pipeline()
	want := pipeline.DefaultConfig()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Default().Pipeline() = %+v, want %+v", got, want)
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
[run]
seed = 7
folds = 5
positive = "spam"
representations = ["bow", "bigram"]

[run.bow]
min_term_freq = 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := cfg.Pipeline()
	if p.Seed != 7 || p.Folds != 5 || p.Positive != "spam" {
		t.Errorf("unexpected values: %+v", p)
	}
	if p.BagOfWordsTrim.MinTermFreq != 3 {
		t.Errorf("bow min term freq = %d, want 3", p.BagOfWordsTrim.MinTermFreq)
	}
	// Absent keys keep defaults.
	if p.BagOfWordsTrim.MinDocFreq != 1 || p.Alpha != 1 || p.TrainFraction != 0.5 {
		t.Errorf("defaults lost: %+v", p)
	}
	if !reflect.DeepEqual(p.Representations, []pipeline.Representation{pipeline.BagOfWords, pipeline.Bigram}) {
		t.Errorf("representations = %v", p.Representations)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"missing run", "[other]\nx = 1\n", ErrRunSectionMissing},
		{"unknown key", "[run]\nsead = 7\n", ErrUnknownKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("malformed", func(t *testing.T) {
		if _, err := Load(writeFile(t, "[run\n")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Error("empty path should return defaults")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NBEVAL_SEED", "99")
	t.Setenv("NBEVAL_ALPHA", "0.5")
	t.Setenv("NBEVAL_STEMMING", "false")
	t.Setenv("NBEVAL_REPRESENTATIONS", "tfidf, bow")
	t.Setenv("NBEVAL_POSITIVE", "ham")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	p := cfg.Pipeline()
	if p.Seed != 99 || p.Alpha != 0.5 || p.Stemming || p.Positive != "ham" {
		t.Errorf("env not applied: %+v", p)
	}
	if !reflect.DeepEqual(p.Representations, []pipeline.Representation{pipeline.TFIDF, pipeline.BagOfWords}) {
		t.Errorf("representations = %v", p.Representations)
	}
}

func TestApplyEnvMalformed(t *testing.T) {
	t.Setenv("NBEVAL_FOLDS", "ten")
	t.Setenv("NBEVAL_ALPHA", "x")

	cfg := Default()
	err := cfg.ApplyEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if cfg.Run.Folds != 10 {
		t.Errorf("folds changed to %d on malformed input", cfg.Run.Folds)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Run.Representations = []string{"bow", "bow"}
	if err := cfg.Validate(); !errors.Is(err, pipeline.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
