package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

// schema.sql создаёт таблицу истории детекций.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteDetectionRepository история детекций в SQLite.
type SQLiteDetectionRepository struct {
	db *sql.DB
}

// OpenSQLiteDetectionRepository открывает базу и применяет схему.
func OpenSQLiteDetectionRepository(path string) (*SQLiteDetectionRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open history db %s", path)
	}
	// modernc sqlite не любит параллельную запись в один файл
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply history schema")
	}
	return &SQLiteDetectionRepository{db: db}, nil
}

func (r *SQLiteDetectionRepository) Save(ctx context.Context, record entity.DetectionRecord) error {
	query := `
		INSERT OR REPLACE INTO detections
			(id, source, label, score, raw_score, anomalous_fraction, strategy, inference_ms, total_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.Source, string(record.Label), record.Score, record.RawScore,
		record.AnomalousFraction, record.Strategy, record.InferenceMS, record.TotalMS,
		record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return errors.Wrapf(err, "insert detection %s", record.ID)
	}
	return nil
}

// Recent возвращает до limit записей, новые первыми. limit <= 0 означает все.
func (r *SQLiteDetectionRepository) Recent(ctx context.Context, limit int) ([]entity.DetectionRecord, error) {
	query := `
		SELECT id, source, label, score, raw_score, anomalous_fraction, strategy, inference_ms, total_ms, created_at
		FROM detections
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query detections")
	}
	defer rows.Close()

	var out []entity.DetectionRecord
	for rows.Next() {
		var (
			rec     entity.DetectionRecord
			label   string
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &label, &rec.Score, &rec.RawScore,
			&rec.AnomalousFraction, &rec.Strategy, &rec.InferenceMS, &rec.TotalMS, &created); err != nil {
			return nil, errors.Wrap(err, "scan detection")
		}
		rec.Label = entity.Label(label)
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate detections")
}

// Close закрывает базу
func (r *SQLiteDetectionRepository) Close() error {
	return r.db.Close()
}

// Проверка реализации интерфейса
var _ port.DetectionRepository = (*SQLiteDetectionRepository)(nil)
