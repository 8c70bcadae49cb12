package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"creditrisk/ml"
	"creditrisk/pipeline"
)

func newPredictCmd(a *app) *cobra.Command {
	var (
		modelPath string
		dataPath  string
		rows      int
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score applicants from a CSV, or the built-in example applicant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("model") {
				a.cfg.Model.Path = modelPath
			}
			return runPredict(cmd.Context(), cmd.OutOrStdout(), a, dataPath, rows)
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "bundle path")
	cmd.Flags().StringVar(&dataPath, "data", "", "CSV of applicants (default: built-in example applicant)")
	cmd.Flags().IntVar(&rows, "rows", 2, "score the first N rows of the CSV")
	return cmd
}

func runPredict(ctx context.Context, out io.Writer, a *app, dataPath string, rows int) error {
	logger := a.logger
	bundle, err := ml.LoadBundle(a.cfg.Model.Path)
	if err != nil {
		return err
	}
	logger.Info("loaded model bundle",
		zap.String("path", a.cfg.Model.Path),
		zap.Strings("features", bundle.FeatureColumns))

	var records []ml.Record
	if dataPath != "" {
		ds, err := pipeline.ReadCSV(dataPath, a.cfg.Training.LabelColumn)
		if err != nil {
			return err
		}
		for _, m := range ds.Head(rows).Maps() {
			records = append(records, ml.Record(m))
		}
		logger.Info("predicting on dataset rows", zap.String("path", dataPath), zap.Int("rows", len(records)))
	} else {
		records = []ml.Record{ml.Record(pipeline.ExampleApplicant())}
		logger.Info("no dataset given, using the example applicant")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	preds, err := ml.NewPredictor(bundle).Predict(ctx, records)
	if err != nil {
		return err
	}
	printPredictions(out, preds)
	return nil
}

func riskLevel(label int) string {
	if label == 1 {
		return "HIGH Risk (Default Likely)"
	}
	return "LOW Risk (Good Candidate)"
}

func printPredictions(out io.Writer, preds []ml.Prediction) {
	fmt.Fprintln(out, "--- FINAL PREDICTION RESULTS ---")
	for i, p := range preds {
		fmt.Fprintf(out, "Applicant %d:\n", i+1)
		fmt.Fprintf(out, "  -> %s\n", riskLevel(p.Label))
		fmt.Fprintf(out, "  -> Default Probability: %.4f\n", p.Probability)
		fmt.Fprintln(out, strings.Repeat("-", 20))
	}
}
