package db

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"creditrisk/ml"
	"creditrisk/pipeline"
)

var database *sql.DB

var errNotInitialized = errors.New("database not initialized")

// InitDB opens the SQLite database at path in WAL mode and creates the
// tables. The server audits predictions from concurrent handlers, so
// writers wait on the busy timeout instead of failing.
func InitDB(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var err error
	database, err = sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return err
	}
	database.SetMaxOpenConns(4)
	database.SetConnMaxLifetime(time.Hour)

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        fingerprint VARCHAR(64),
        accuracy REAL,
        precision REAL,
        recall REAL,
        f1 REAL,
        train_size INTEGER,
        test_size INTEGER,
        trained_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT,
        fingerprint VARCHAR(64),
        predicted_label INTEGER,
        probability REAL,
        timestamp DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_request ON predictions(request_id);
    CREATE TABLE IF NOT EXISTS data_quality (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        fingerprint VARCHAR(64),
        rule TEXT NOT NULL,
        row_index INTEGER,
        message TEXT,
        timestamp DATETIME
    );
    `

	_, err = database.Exec(query)
	return err
}

func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

type TrainingLog struct {
	ModelName   string    `json:"model_name"`
	Fingerprint string    `json:"fingerprint"`
	Accuracy    float64   `json:"accuracy"`
	Precision   float64   `json:"precision"`
	Recall      float64   `json:"recall"`
	F1          float64   `json:"f1"`
	TrainSize   int       `json:"train_size"`
	TestSize    int       `json:"test_size"`
	TrainedAt   time.Time `json:"trained_at"`
}

// NewTrainingLog summarises a bundle's evaluation, using the metrics of the
// positive (default) class.
func NewTrainingLog(name string, bundle *ml.Bundle) TrainingLog {
	entry := TrainingLog{
		ModelName:   name,
		Fingerprint: bundle.Fingerprint,
		TrainedAt:   bundle.TrainedAt,
	}
	if r := bundle.Report; r != nil {
		entry.Accuracy = r.Accuracy
		entry.TrainSize = r.TrainSize
		entry.TestSize = r.TestSize
		for _, c := range r.PerClass {
			if c.Label == 1 {
				entry.Precision = c.Precision
				entry.Recall = c.Recall
				entry.F1 = c.F1
			}
		}
	}
	return entry
}

func SaveTrainingLog(entry TrainingLog) error {
	if database == nil {
		return errNotInitialized
	}
	_, err := database.Exec(`
        INSERT INTO training_log (
            model_name, fingerprint, accuracy, precision, recall, f1,
            train_size, test_size, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		entry.ModelName,
		entry.Fingerprint,
		entry.Accuracy,
		entry.Precision,
		entry.Recall,
		entry.F1,
		entry.TrainSize,
		entry.TestSize,
		entry.TrainedAt,
	)
	return err
}

func LoadTrainingLog() ([]TrainingLog, error) {
	if database == nil {
		return nil, errNotInitialized
	}
	rows, err := database.Query(`
        SELECT model_name, fingerprint, accuracy, precision, recall, f1,
               train_size, test_size, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.Fingerprint, &log.Accuracy, &log.Precision, &log.Recall,
			&log.F1, &log.TrainSize, &log.TestSize, &log.TrainedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// SavePredictions records one audit row per prediction of a request.
func SavePredictions(requestID, fingerprint string, predictions []ml.Prediction) error {
	if database == nil {
		return errNotInitialized
	}
	if len(predictions) == 0 {
		return nil
	}

	tx, err := database.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
        INSERT INTO predictions (
            request_id, fingerprint, predicted_label, probability, timestamp
        ) VALUES (?, ?, ?, ?, ?)
    `)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range predictions {
		if _, err := stmt.Exec(requestID, fingerprint, p.Label, p.Probability, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// CountPredictions returns how many audit rows carry requestID.
func CountPredictions(requestID string) (int, error) {
	if database == nil {
		return 0, errNotInitialized
	}
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM predictions WHERE request_id = ?`, requestID).Scan(&n)
	return n, err
}

// SaveQualityIssues records the rows the cleaner rejected while building
// the bundle identified by fingerprint.
func SaveQualityIssues(fingerprint string, issues []pipeline.QualityIssue) error {
	if database == nil {
		return errNotInitialized
	}
	if len(issues) == 0 {
		return nil
	}

	tx, err := database.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
        INSERT INTO data_quality (fingerprint, rule, row_index, message, timestamp)
        VALUES (?, ?, ?, ?, ?)
    `)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, issue := range issues {
		if _, err := stmt.Exec(fingerprint, issue.Rule, issue.Row, issue.Message, issue.Timestamp.UTC()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// QualityIssueCounts returns the number of recorded issues per rule for a
// bundle.
func QualityIssueCounts(fingerprint string) (map[string]int, error) {
	if database == nil {
		return nil, errNotInitialized
	}
	rows, err := database.Query(`
        SELECT rule, COUNT(*) FROM data_quality
        WHERE fingerprint = ?
        GROUP BY rule
    `, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, err
		}
		counts[rule] = n
	}
	return counts, rows.Err()
}
