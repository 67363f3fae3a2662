package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/fractal-lba/nbeval/internal/corpus"
	"github.com/fractal-lba/nbeval/internal/dtm"
	"github.com/fractal-lba/nbeval/internal/eval"
	"github.com/fractal-lba/nbeval/internal/pipeline"
)

var (
	heading   = color.New(color.FgCyan, color.Bold)
	subtle    = color.New(color.Faint)
	warnColor = color.New(color.FgYellow)
	goodColor = color.New(color.FgGreen)
)

// score renders a metric, highlighting undefined values.
func score(s eval.Score) string {
	if !s.Defined() {
		return warnColor.Sprint(s.String())
	}
	return s.String()
}

func summary(s eval.Summary) string {
	out := fmt.Sprintf("%s ± %s", score(s.Mean), score(s.StdDev))
	if s.Undefined > 0 {
		out += warnColor.Sprintf(" (%d undefined)", s.Undefined)
	}
	return out
}

func renderReport(w io.Writer, report *pipeline.Report) {
	heading.Fprintf(w, "=== Evaluation %s ===\n", report.RunID)
	fmt.Fprintf(w, "Documents: %d (%s=%d, %s=%d)\n", report.Documents,
		report.Classes[0], report.ClassCounts[0], report.Classes[1], report.ClassCounts[1])
	fmt.Fprintf(w, "Positive class: %s\n", report.Positive)
	fmt.Fprintf(w, "Seed: %d, folds: %d, alpha: %g, train fraction: %g\n",
		report.Config.Seed, report.Config.Folds, report.Config.Alpha, report.Config.TrainFraction)
	subtle.Fprintf(w, "Fingerprint: %s\n", report.Fingerprint)

	for _, res := range report.Results {
		fmt.Fprintln(w)
		heading.Fprintf(w, "--- %s (%d terms, %d empty rows) ---\n", res.Representation, res.VocabularySize, res.EmptyRows)

		h := res.Holdout
		fmt.Fprintf(w, "Holdout (%d train / %d test)", h.TrainSize, h.TestSize)
		if h.Degraded {
			warnColor.Fprintf(w, " degraded: %s", h.Reason)
		}
		fmt.Fprintln(w)
		renderConfusion(w, h.Confusion, report.Classes)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  accuracy\t%s\tbaseline %s\n", accuracy(h.Metrics.Accuracy, h.Baseline), score(h.Baseline))
		fmt.Fprintf(tw, "  precision\t%s\n", score(h.Metrics.Precision))
		fmt.Fprintf(tw, "  recall\t%s\n", score(h.Metrics.Recall))
		fmt.Fprintf(tw, "  f1\t%s\n", score(h.Metrics.F1))
		tw.Flush()

		if cv := res.CrossValidation; cv != nil {
			fmt.Fprintf(w, "Cross-validation (%d folds", len(cv.Folds))
			if cv.DegradedFolds > 0 {
				warnColor.Fprintf(w, ", %d degraded", cv.DegradedFolds)
			}
			fmt.Fprintln(w, ")")

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "  accuracy\t%s\n", summary(cv.Accuracy))
			fmt.Fprintf(tw, "  precision\t%s\n", summary(cv.Precision))
			fmt.Fprintf(tw, "  recall\t%s\n", summary(cv.Recall))
			fmt.Fprintf(tw, "  f1\t%s\n", summary(cv.F1))
			tw.Flush()
		}

		for _, c := range report.Classes {
			terms := res.TopTerms[c]
			if len(terms) == 0 {
				continue
			}
			fmt.Fprintf(w, "Top terms for %s: ", c)
			for i, t := range terms {
				if i > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprint(w, t.Term)
			}
			fmt.Fprintln(w)
		}
	}
}

// accuracy colors a holdout accuracy that beats the majority baseline.
func accuracy(acc, baseline eval.Score) string {
	if acc.Defined() && baseline.Defined() && acc > baseline {
		return goodColor.Sprint(acc.String())
	}
	return score(acc)
}

func renderConfusion(w io.Writer, cm eval.ConfusionMatrix, classes corpus.Classes) {
	pos := classes.Name(cm.Positive)
	neg := classes.Name(1 - cm.Positive)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\tactual %s\tactual %s\t\n", pos, neg)
	fmt.Fprintf(tw, "predicted %s\t%d\t%d\t\n", pos, cm.TruePositives, cm.FalsePositives)
	fmt.Fprintf(tw, "predicted %s\t%d\t%d\t\n", neg, cm.FalseNegatives, cm.TrueNegatives)
	tw.Flush()
}

func renderTerms(w io.Writer, rep pipeline.Representation, m *dtm.Matrix, labels []int, classes corpus.Classes, n int) {
	heading.Fprintf(w, "=== Top %s terms (%d in vocabulary) ===\n", rep, m.Cols())
	for c := 0; c < 2; c++ {
		fmt.Fprintf(w, "\n%s\n", heading.Sprint(classes.Name(c)))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for i, t := range dtm.TopTerms(m, labels, c, n) {
			fmt.Fprintf(tw, "%3d\t%s\t%.4g\n", i+1, t.Term, t.Weight)
		}
		tw.Flush()
	}
}
