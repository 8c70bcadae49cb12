package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"creditrisk/config"
	"creditrisk/db"
	"creditrisk/ml"
	"creditrisk/pipeline"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		samples   int
		seed      int64
		dataIn    string
		dataOut   string
		modelPath string
		trees     int
		maxDepth  int
		policy    string
		threshold float64
		dbPath    string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit encoders, scaler and forest and save the bundle",
		Long: "Train reads a labelled CSV (or generates a synthetic credit dataset), " +
			"cleans it, fits the preprocessing and the random forest, prints the " +
			"held-out evaluation and writes the bundle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := &a.cfg.Training
			flags := cmd.Flags()
			if flags.Changed("samples") {
				tc.Samples = samples
			}
			if flags.Changed("seed") {
				tc.Seed = seed
			}
			if flags.Changed("data") {
				tc.DatasetIn = dataIn
			}
			if flags.Changed("out-data") {
				tc.DatasetOut = dataOut
			}
			if flags.Changed("trees") {
				tc.Forest.NEstimators = trees
			}
			if flags.Changed("max-depth") {
				tc.Forest.MaxDepth = maxDepth
			}
			if flags.Changed("unseen-policy") {
				tc.UnseenPolicy = policy
			}
			if flags.Changed("threshold") {
				tc.Threshold = threshold
			}
			if flags.Changed("model") {
				a.cfg.Model.Path = modelPath
			}
			if flags.Changed("db") {
				a.cfg.Database.Path = dbPath
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return runTrain(cmd, a)
		},
	}
	cmd.Flags().IntVarP(&samples, "samples", "n", 0, "synthetic rows to generate")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for generation, split and forest")
	cmd.Flags().StringVar(&dataIn, "data", "", "train on this labelled CSV instead of synthetic data")
	cmd.Flags().StringVar(&dataOut, "out-data", "", "write the synthetic dataset to this CSV (empty skips)")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "bundle output path")
	cmd.Flags().IntVar(&trees, "trees", 0, "number of trees")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum tree depth (0 is unlimited)")
	cmd.Flags().StringVar(&policy, "unseen-policy", "", "unseen category policy: reject or unknown")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "positive-class probability threshold")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path for the training log and data quality issues")
	return cmd
}

func runTrain(cmd *cobra.Command, a *app) error {
	cfg, logger := a.cfg, a.logger
	tc := cfg.Training

	ds, synthetic, err := loadTrainingData(tc)
	if err != nil {
		return err
	}
	logger.Info("loaded training data",
		zap.Int("rows", ds.Len()),
		zap.Bool("synthetic", synthetic),
		zap.Strings("columns", ds.Columns))

	if synthetic && tc.DatasetOut != "" {
		if err := pipeline.WriteCSV(tc.DatasetOut, ds); err != nil {
			return fmt.Errorf("write dataset: %w", err)
		}
		logger.Info("saved synthetic dataset", zap.String("path", tc.DatasetOut))
	}

	cleaner := pipeline.NewCreditDataCleaner(logger)
	cleaned, issues := cleaner.Clean(ds)
	stats := cleaner.GetStats()
	logger.Info("cleaned training data",
		zap.Int64("passed", stats.Passed),
		zap.Int64("rejected", stats.Rejected),
		zap.Int64("corrected", stats.Corrected),
		zap.Int("issues", len(issues)))

	trainer, err := newTrainer(tc, synthetic, logger)
	if err != nil {
		return err
	}
	bundle, err := trainer.Train(cleaned)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Test Accuracy: %.4f\n", bundle.Report.Accuracy)
	fmt.Fprintln(out, bundle.Report.String())

	if err := ml.SaveBundle(bundle, cfg.Model.Path); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	logger.Info("saved model bundle",
		zap.String("path", cfg.Model.Path),
		zap.String("fingerprint", bundle.Fingerprint))

	if cfg.Database.Path != "" {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		defer db.Close()
		if err := db.SaveTrainingLog(db.NewTrainingLog("random_forest", bundle)); err != nil {
			return fmt.Errorf("save training log: %w", err)
		}
		if err := db.SaveQualityIssues(bundle.Fingerprint, issues); err != nil {
			return fmt.Errorf("save quality issues: %w", err)
		}
	}
	return nil
}

func loadTrainingData(tc config.TrainingConfig) (*pipeline.Dataset, bool, error) {
	if tc.DatasetIn != "" {
		ds, err := pipeline.ReadCSV(tc.DatasetIn, tc.LabelColumn)
		if err != nil {
			return nil, false, err
		}
		if len(ds.Labels) != ds.Len() {
			return nil, false, fmt.Errorf("%s has no %q label column", tc.DatasetIn, tc.LabelColumn)
		}
		return ds, false, nil
	}
	if tc.Samples <= 0 {
		return nil, false, fmt.Errorf("training.samples must be positive, got %d", tc.Samples)
	}
	return pipeline.GenerateSynthetic(tc.Samples, tc.Seed), true, nil
}

func newTrainer(tc config.TrainingConfig, synthetic bool, logger *zap.Logger) (*ml.Trainer, error) {
	policy, err := ml.ParseUnseenPolicy(tc.UnseenPolicy)
	if err != nil {
		return nil, err
	}

	forest := ml.DefaultForestConfig()
	forest.Seed = tc.Seed
	if tc.Forest.NEstimators > 0 {
		forest.NEstimators = tc.Forest.NEstimators
	}
	forest.MaxDepth = tc.Forest.MaxDepth
	if tc.Forest.MinSamplesLeaf > 0 {
		forest.MinSamplesLeaf = tc.Forest.MinSamplesLeaf
	}
	forest.MaxFeatures = tc.Forest.MaxFeatures
	forest.Workers = tc.Forest.Workers

	trainerCfg := ml.TrainerConfig{
		TestRatio:          tc.TestRatio,
		Seed:               tc.Seed,
		Threshold:          tc.Threshold,
		UnseenPolicy:       policy,
		Forest:             forest,
		CategoricalColumns: tc.CategoricalColumns,
	}
	if synthetic {
		trainerCfg.FeatureColumns = pipeline.FeatureColumns
		if len(trainerCfg.CategoricalColumns) == 0 {
			trainerCfg.CategoricalColumns = pipeline.CategoricalColumns
		}
	} else if len(trainerCfg.CategoricalColumns) == 0 {
		trainerCfg.CategoricalColumns = nil
	}
	return ml.NewTrainer(trainerCfg, logger), nil
}
