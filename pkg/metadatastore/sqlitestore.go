package metadatastore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for predictions and models
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based storage instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Format: file:path?_pragma=name(value)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// For SQLite, we want this relatively low since writes are serialized anyway
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}
	// In-memory databases will use "memory" mode, which is acceptable for testing
	if journalMode != "wal" && journalMode != "delete" && journalMode != "memory" {
		db.Close()
		return nil, fmt.Errorf("unexpected journal mode: got %s", journalMode)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY
// This provides an additional safety net on top of the busy_timeout pragma
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if isBusy(err) {
			// Exponential backoff: 10ms, 20ms, 40ms, 80ms, 160ms
			backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
			time.Sleep(backoff)
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		prediction TEXT NOT NULL,
		probability REAL NOT NULL,
		source TEXT NOT NULL,
		model_id TEXT,
		created_at INTEGER NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);

	CREATE TABLE IF NOT EXISTS ml_models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		version TEXT NOT NULL,
		artifact_path TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ml_models_status ON ml_models(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SavePrediction saves a prediction record to the database
func (s *SQLiteStore) SavePrediction(record *models.PredictionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO predictions (id, kind, prediction, probability, source, model_id, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	// Predictions are written from concurrent request handlers
	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query,
			record.ID,
			record.Kind,
			record.Prediction,
			record.Probability,
			string(record.Source),
			record.ModelID,
			record.CreatedAt.UnixNano(),
			string(data),
		)
		return execErr
	}, 5)

	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	return nil
}

// GetPrediction retrieves a prediction record by ID
func (s *SQLiteStore) GetPrediction(id string) (*models.PredictionRecord, error) {
	var data string
	query := `SELECT data FROM predictions WHERE id = ?`

	err := s.db.QueryRow(query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	var record models.PredictionRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}

	return &record, nil
}

// ListPredictions lists the most recent predictions first. A limit of zero
// or less returns every record.
func (s *SQLiteStore) ListPredictions(limit int) ([]*models.PredictionRecord, error) {
	query := `SELECT data FROM predictions ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	records := make([]*models.PredictionRecord, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}

		var record models.PredictionRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

// DeletePredictionsBefore removes history older than cutoff and reports how
// many rows were deleted
func (s *SQLiteStore) DeletePredictionsBefore(cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.retryOnBusy(func() error {
		res, execErr := s.db.Exec(`DELETE FROM predictions WHERE created_at < ?`, cutoff.UnixNano())
		if execErr != nil {
			return execErr
		}
		deleted, execErr = res.RowsAffected()
		return execErr
	}, 5)
	if err != nil {
		return 0, fmt.Errorf("failed to prune predictions: %w", err)
	}
	return deleted, nil
}

// SaveMLModel saves a model registry entry
func (s *SQLiteStore) SaveMLModel(model *models.MLModel) error {
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO ml_models (id, name, type, status, version, artifact_path, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query,
			model.ID,
			model.Name,
			string(model.Type),
			string(model.Status),
			model.Version,
			model.ArtifactPath,
			model.CreatedAt.UnixNano(),
			model.UpdatedAt.UnixNano(),
			string(data),
		)
		return execErr
	}, 5)

	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	return nil
}

// GetMLModel retrieves a model by ID
func (s *SQLiteStore) GetMLModel(id string) (*models.MLModel, error) {
	return s.getMLModel(`SELECT data FROM ml_models WHERE id = ?`, id)
}

// GetLatestMLModel returns the most recently created trained model
func (s *SQLiteStore) GetLatestMLModel() (*models.MLModel, error) {
	return s.getMLModel(`SELECT data FROM ml_models WHERE status = ? ORDER BY created_at DESC LIMIT 1`, string(models.ModelStatusTrained))
}

func (s *SQLiteStore) getMLModel(query string, arg string) (*models.MLModel, error) {
	var data string
	err := s.db.QueryRow(query, arg).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	var model models.MLModel
	if err := json.Unmarshal([]byte(data), &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}

	return &model, nil
}

// ListMLModels lists all models, newest first
func (s *SQLiteStore) ListMLModels() ([]*models.MLModel, error) {
	rows, err := s.db.Query(`SELECT data FROM ml_models ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	list := make([]*models.MLModel, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}

		var model models.MLModel
		if err := json.Unmarshal([]byte(data), &model); err != nil {
			continue
		}

		list = append(list, &model)
	}

	return list, rows.Err()
}

// DeleteMLModel deletes a model registry entry
func (s *SQLiteStore) DeleteMLModel(id string) error {
	_, err := s.db.Exec(`DELETE FROM ml_models WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}
