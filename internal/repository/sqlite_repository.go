package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/logger"
	"go-roi-inspector/pkg/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	folder     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	decode     TEXT,
	images     INTEGER NOT NULL,
	failures   TEXT
);
CREATE TABLE IF NOT EXISTS measurements (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	image     TEXT NOT NULL,
	timestamp TEXT,
	region_id INTEGER NOT NULL,
	shape     TEXT NOT NULL,
	params    TEXT NOT NULL,
	mean_r REAL, mean_g REAL, mean_b REAL,
	std_r  REAL, std_g  REAL, std_b  REAL,
	samples INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`

// Query constants
const (
	RunInsertQuery = `
		INSERT INTO runs (id, folder, created_at, decode, images, failures)
		VALUES (?, ?, ?, ?, ?, ?)`

	MeasurementInsertQuery = `
		INSERT INTO measurements (run_id, seq, image, timestamp, region_id, shape, params,
			mean_r, mean_g, mean_b, std_r, std_g, std_b, samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	RunSelectQuery = `
		SELECT id, folder, created_at, decode, images, failures
		FROM runs WHERE id = ?`

	MeasurementSelectQuery = `
		SELECT image, timestamp, region_id, shape, params,
			mean_r, mean_g, mean_b, std_r, std_g, std_b, samples
		FROM measurements WHERE run_id = ? ORDER BY seq`

	RunListQuery = `
		SELECT r.id, r.folder, r.created_at, r.images, r.failures,
			(SELECT COUNT(*) FROM measurements m WHERE m.run_id = r.id)
		FROM runs r ORDER BY r.created_at DESC LIMIT ?`
)

// DefaultListLimit caps ListRuns when no positive limit is given.
const DefaultListLimit = 50

// SQLiteRepository implements RunRepository on database/sql.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at path and
// applies the schema.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.NewStorageError("failed to create results directory", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open results database", errors.Join(ErrRepositoryUnavailable, err))
	}
	// sqlite allows one writer
	db.SetMaxOpenConns(1)

	repo := NewRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	logger.WithField("path", path).Info("Results database ready")
	return repo, nil
}

// NewRepository wraps an open database. The schema is not applied.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Migrate creates the tables when they do not exist.
func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return apperrors.NewStorageError("failed to apply results schema", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveRun(ctx context.Context, run *models.BatchRun) error {
	if run == nil || run.Folder == "" {
		return apperrors.NewInvalidInputError("run must name a folder", ErrInvalidRun)
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	failures, err := json.Marshal(run.Failures)
	if err != nil {
		return apperrors.NewInternalError("failed to encode failures", err)
	}
	var decode sql.NullString
	if len(run.Decode) > 0 {
		decode = sql.NullString{String: string(run.Decode), Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, RunInsertQuery,
		run.ID, run.Folder, run.CreatedAt.UnixNano(), decode, run.Images, string(failures),
	); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to insert run %s", run.ID), err)
	}

	stmt, err := tx.PrepareContext(ctx, MeasurementInsertQuery)
	if err != nil {
		return apperrors.NewStorageError("failed to prepare measurement insert", err)
	}
	defer stmt.Close()

	for seq, row := range run.Table.Rows {
		if _, err := stmt.ExecContext(ctx,
			run.ID, seq, row.Image, nullTime(row.Timestamp),
			row.ID, row.Shape, row.Parameters,
			nullFloat(row.MeanR), nullFloat(row.MeanG), nullFloat(row.MeanB),
			nullFloat(row.StdR), nullFloat(row.StdG), nullFloat(row.StdB),
			row.Samples,
		); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("failed to insert row %d of run %s", seq, run.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("failed to commit run", err)
	}

	logger.WithFields(logrus.Fields{
		"run_id": run.ID,
		"folder": run.Folder,
		"rows":   len(run.Table.Rows),
	}).Info("Batch run saved")
	return nil
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*models.BatchRun, error) {
	var (
		run       models.BatchRun
		createdAt int64
		decode    sql.NullString
		failures  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, RunSelectQuery, id).
		Scan(&run.ID, &run.Folder, &createdAt, &decode, &run.Images, &failures)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("run %s not found", id), ErrRunNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read run %s", id), err)
	}

	run.CreatedAt = fromUnixNano(createdAt)
	if decode.Valid {
		run.Decode = json.RawMessage(decode.String)
	}
	if failures.Valid && failures.String != "" {
		if err := json.Unmarshal([]byte(failures.String), &run.Failures); err != nil {
			return nil, apperrors.NewStorageError("stored run has bad failures", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, MeasurementSelectQuery, id)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read rows of run %s", id), err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row models.MeasurementRow
			ts  sql.NullString
		)
		var mr, mg, mb, sr, sg, sb sql.NullFloat64
		if err := rows.Scan(&row.Image, &ts, &row.ID, &row.Shape, &row.Parameters,
			&mr, &mg, &mb, &sr, &sg, &sb, &row.Samples); err != nil {
			return nil, apperrors.NewStorageError("failed to scan measurement", err)
		}
		if ts.Valid {
			if row.Timestamp, err = time.Parse(time.RFC3339Nano, ts.String); err != nil {
				return nil, apperrors.NewStorageError("stored row has a bad timestamp", err)
			}
		}
		row.MeanR, row.MeanG, row.MeanB = floatOrNaN(mr), floatOrNaN(mg), floatOrNaN(mb)
		row.StdR, row.StdG, row.StdB = floatOrNaN(sr), floatOrNaN(sg), floatOrNaN(sb)
		row.Empty = !mr.Valid
		run.Table.Rows = append(run.Table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate measurements", err)
	}
	return &run, nil
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, RunListQuery, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list runs", err)
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		var (
			s         models.RunSummary
			createdAt int64
			failures  sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Folder, &createdAt, &s.Images, &failures, &s.Rows); err != nil {
			return nil, apperrors.NewStorageError("failed to scan run", err)
		}
		s.CreatedAt = fromUnixNano(createdAt)
		if failures.Valid && failures.String != "" {
			var list []models.Failure
			if err := json.Unmarshal([]byte(failures.String), &list); err == nil {
				s.Failures = len(list)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate runs", err)
	}
	return out, nil
}

// nullFloat stores NaN (an empty region) as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// fromUnixNano restores a created_at column. Integers keep runs saved
// within the same second in creation order.
func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}
