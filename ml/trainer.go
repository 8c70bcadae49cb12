package ml

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"creditrisk/pipeline"
)

// TrainerConfig controls how a bundle is fitted from a dataset. Empty
// FeatureColumns means every dataset column; nil CategoricalColumns means
// the columns holding non-numeric values.
type TrainerConfig struct {
	FeatureColumns     []string
	CategoricalColumns []string
	TestRatio          float64
	Seed               int64
	Threshold          float64
	UnseenPolicy       UnseenPolicy
	Forest             ForestConfig
}

func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		TestRatio:    0.2,
		Seed:         42,
		Threshold:    DefaultThreshold,
		UnseenPolicy: UnseenReject,
		Forest:       DefaultForestConfig(),
	}
}

type Trainer struct {
	cfg    TrainerConfig
	logger *zap.Logger
}

func NewTrainer(cfg TrainerConfig, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Zero means unset here; config.Validate rejects an explicit zero.
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.UnseenPolicy == "" {
		cfg.UnseenPolicy = UnseenReject
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Train fits encoders, scaler and forest in dependency order and returns
// the evaluated bundle. Encoders see every row; the scaler and the forest
// see the training split only. The test split is scored through the same
// Preprocessor that serves requests.
func (t *Trainer) Train(ds *pipeline.Dataset) (*Bundle, error) {
	if ds.Len() == 0 {
		return nil, errors.New("dataset is empty")
	}
	if len(ds.Labels) != ds.Len() {
		return nil, fmt.Errorf("dataset has %d rows but %d labels", ds.Len(), len(ds.Labels))
	}

	columns := t.cfg.FeatureColumns
	if len(columns) == 0 {
		columns = ds.Columns
	}
	categorical := t.cfg.CategoricalColumns
	if categorical == nil {
		categorical = ds.NonNumericColumns()
	}

	bundle := &Bundle{
		FeatureColumns: append([]string(nil), columns...),
		Encoders:       make(map[string]*LabelEncoder, len(categorical)),
		Threshold:      t.cfg.Threshold,
		UnseenPolicy:   t.cfg.UnseenPolicy,
	}
	for _, col := range categorical {
		values, err := ds.Column(col)
		if err != nil {
			return nil, err
		}
		enc := NewLabelEncoder(t.cfg.UnseenPolicy)
		if err := enc.Fit(values); err != nil {
			return nil, fmt.Errorf("fit encoder %s: %w", col, err)
		}
		bundle.Encoders[col] = enc
		t.logger.Debug("fitted encoder", zap.String("column", col), zap.Strings("classes", enc.Classes))
	}

	records := make([]Record, ds.Len())
	for i, m := range ds.Maps() {
		records[i] = Record(m)
	}
	pre := NewPreprocessor(bundle)
	encoded, err := pre.Encode(records)
	if err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}

	trainIdx, testIdx := StratifiedSplit(ds.Labels, t.cfg.TestRatio, t.cfg.Seed)
	trainX := selectRows(encoded, trainIdx)
	trainY := selectRows(ds.Labels, trainIdx)

	scaler := NewStandardScaler()
	scaledTrain, err := scaler.FitTransform(trainX)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	bundle.Scaler = scaler

	started := time.Now()
	forest := NewRandomForest(t.cfg.Forest)
	if err := forest.Fit(scaledTrain, trainY); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}
	bundle.Model = forest
	t.logger.Info("fitted random forest",
		zap.Int("trees", len(forest.Trees)),
		zap.Int("train_rows", len(trainIdx)),
		zap.Duration("took", time.Since(started)))

	report := Report{TrainSize: len(trainIdx)}
	if len(testIdx) > 0 {
		preds, err := NewPredictor(bundle).predictRecords(selectRows(records, testIdx))
		if err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
		yPred := make([]int, len(preds))
		for i, p := range preds {
			yPred[i] = p.Label
		}
		report = Evaluate(selectRows(ds.Labels, testIdx), yPred, forest.Classes)
		report.TrainSize = len(trainIdx)
	}
	bundle.Report = &report
	bundle.TrainedAt = time.Now().UTC()
	bundle.Fingerprint = bundle.ComputeFingerprint()

	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return bundle, nil
}
