package ml

import (
	"fmt"
	"strings"
)

type ClassReport struct {
	Label     int     `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises held-out evaluation of a trained bundle.
type Report struct {
	Accuracy  float64       `json:"accuracy"`
	PerClass  []ClassReport `json:"per_class"`
	TrainSize int           `json:"train_size"`
	TestSize  int           `json:"test_size"`
}

// Evaluate compares predicted labels with the truth for every class in classes.
func Evaluate(yTrue, yPred []int, classes []int) Report {
	report := Report{TestSize: len(yTrue)}
	if len(yTrue) == 0 {
		return report
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	report.Accuracy = float64(correct) / float64(len(yTrue))

	for _, class := range classes {
		var tp, fp, fn, support int
		for i := range yTrue {
			actual := yTrue[i] == class
			predicted := yPred[i] == class
			if actual {
				support++
			}
			switch {
			case actual && predicted:
				tp++
			case predicted:
				fp++
			case actual:
				fn++
			}
		}
		cr := ClassReport{Label: class, Support: support}
		if tp+fp > 0 {
			cr.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			cr.Recall = float64(tp) / float64(tp+fn)
		}
		if cr.Precision+cr.Recall > 0 {
			cr.F1 = 2 * cr.Precision * cr.Recall / (cr.Precision + cr.Recall)
		}
		report.PerClass = append(report.PerClass, cr)
	}
	return report
}

// String renders the report as a fixed-width table.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%10s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range r.PerClass {
		fmt.Fprintf(&b, "%10d %10.2f %10.2f %10.2f %10d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(&b, "\n%10s %32.2f %10d\n", "accuracy", r.Accuracy, r.TestSize)
	return b.String()
}
