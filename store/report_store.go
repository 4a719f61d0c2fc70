package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"craftfolio/analytics/models"
)

// ReportStore persists report snapshots in Postgres: one timestamped row per
// generation in report_history, plus a per-type "latest" pointer that is
// overwritten on every successful run.
type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

// SaveReport writes the history copy and moves the latest pointer in one
// transaction, so a half-written run never becomes "latest".
func (s *ReportStore) SaveReport(ctx context.Context, report *models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin report transaction: %w: %w", err, models.ErrStoreUnavailable)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO report_history (report_type, generated_at, range_start, range_end, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, string(report.Metadata.Type), report.Metadata.GeneratedAt,
		report.Metadata.TimeRange.Start, report.Metadata.TimeRange.End, payload)
	if err != nil {
		return fmt.Errorf("failed to insert report history: %w: %w", err, models.ErrStoreUnavailable)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO latest_reports (report_type, generated_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (report_type)
		DO UPDATE SET generated_at = EXCLUDED.generated_at, payload = EXCLUDED.payload
	`, string(report.Metadata.Type), report.Metadata.GeneratedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to update latest report: %w: %w", err, models.ErrStoreUnavailable)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w: %w", err, models.ErrStoreUnavailable)
	}

	log.Info().Str("type", string(report.Metadata.Type)).
		Time("generated_at", report.Metadata.GeneratedAt).
		Msg("report snapshot saved")
	return nil
}

// GetLatest returns the most recent report of the given type, or
// models.ErrReportUnavailable when none has been generated yet.
func (s *ReportStore) GetLatest(ctx context.Context, reportType models.ReportType) (*models.Report, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM latest_reports WHERE report_type = $1
	`, string(reportType)).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrReportUnavailable
		}
		return nil, fmt.Errorf("failed to get latest report: %w: %w", err, models.ErrStoreUnavailable)
	}

	report := &models.Report{}
	if err := json.Unmarshal(payload, report); err != nil {
		return nil, fmt.Errorf("failed to decode latest report: %w", err)
	}
	return report, nil
}

// GetHistory returns historical reports of a type within the range, newest
// first.
func (s *ReportStore) GetHistory(ctx context.Context, reportType models.ReportType, start, end time.Time) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM report_history
		WHERE report_type = $1 AND generated_at >= $2 AND generated_at < $3
		ORDER BY generated_at DESC
	`, string(reportType), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query report history: %w: %w", err, models.ErrStoreUnavailable)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			log.Error().Err(err).Msg("failed to scan report history row")
			continue
		}
		var report models.Report
		if err := json.Unmarshal(payload, &report); err != nil {
			log.Warn().Err(err).Msg("malformed stored report skipped")
			continue
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during report history query: %w: %w", err, models.ErrStoreUnavailable)
	}
	return reports, nil
}

// PurgeOlderThan drops history rows past the retention window. The latest
// pointers are never purged.
func (s *ReportStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM report_history WHERE generated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge report history: %w: %w", err, models.ErrStoreUnavailable)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
