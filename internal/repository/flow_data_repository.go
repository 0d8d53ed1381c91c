package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"flownetwork-platform/internal/models"
	"flownetwork-platform/pkg/database"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

// EnsembleKey identifies one ensemble of a simulation case
type EnsembleKey struct {
	CaseUUID string
	Ensemble string
}

func (k EnsembleKey) String() string {
	return k.CaseUUID + "/" + k.Ensemble
}

// EnsembleInfo lists what is stored for an ensemble
type EnsembleInfo struct {
	CaseUUID     string    `db:"case_uuid" json:"case_uuid"`
	EnsembleName string    `db:"ensemble_name" json:"ensemble_name"`
	Realizations []int     `db:"-" json:"realizations"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// EnsembleStore tells whether an ensemble has been registered
type EnsembleStore interface {
	EnsembleExists(ctx context.Context, key EnsembleKey) (bool, error)
}

// GroupTreeStore reads group trees
type GroupTreeStore interface {
	GetGroupTreeTable(ctx context.Context, key EnsembleKey, realization int) (*models.GroupTreeTable, error)
}

// SummaryStore reads summary vectors in long format
type SummaryStore interface {
	ListVectorNames(ctx context.Context, key EnsembleKey) ([]string, error)
	GetSummarySamples(ctx context.Context, key EnsembleKey, realization int, vectorNames []string, frequency models.Frequency) ([]models.SummarySample, error)
}

// SummaryWriter stores summary samples of one realization
type SummaryWriter interface {
	WriteSummarySamples(ctx context.Context, key EnsembleKey, realization int, samples []models.SummarySample) error
}

// FlowDataRepository provides data access for group trees and summary vectors
type FlowDataRepository interface {
	GroupTreeStore
	SummaryStore
	SummaryWriter

	EnsembleStore

	UpsertEnsemble(ctx context.Context, key EnsembleKey) error
	ListEnsembles(ctx context.Context) ([]*EnsembleInfo, error)
	ReplaceGroupTree(ctx context.Context, key EnsembleKey, realization int, rows []models.GroupTreeRow) error

	HealthCheck(ctx context.Context) error
}

// flowDataRepository implements FlowDataRepository on PostgreSQL
type flowDataRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFlowDataRepository creates a new PostgreSQL flow data repository
func NewFlowDataRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) FlowDataRepository {
	return &flowDataRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// UpsertEnsemble registers an ensemble
func (r *flowDataRepository) UpsertEnsemble(ctx context.Context, key EnsembleKey) error {
	query := `
		INSERT INTO ensembles (case_uuid, ensemble_name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (case_uuid, ensemble_name) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, "upsert_ensemble", query, key.CaseUUID, key.Ensemble, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert ensemble: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_UPSERT_ENSEMBLE] Ensemble registered", logging.Fields{
		"case_uuid": key.CaseUUID,
		"ensemble":  key.Ensemble,
	})
	return nil
}

// EnsembleExists looks up the ensemble's registration row
func (r *flowDataRepository) EnsembleExists(ctx context.Context, key EnsembleKey) (bool, error) {
	query := `
		SELECT created_at
		FROM ensembles
		WHERE case_uuid = $1 AND ensemble_name = $2
	`

	var createdAt time.Time
	err := r.db.GetContext(ctx, "get_ensemble", &createdAt, query, key.CaseUUID, key.Ensemble)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up ensemble %s: %w", key, err)
	}
	return true, nil
}

// ListEnsembles returns every ensemble with the realizations that have a group tree
func (r *flowDataRepository) ListEnsembles(ctx context.Context) ([]*EnsembleInfo, error) {
	query := `
		SELECT e.case_uuid, e.ensemble_name, e.created_at,
		       COALESCE(ARRAY_AGG(DISTINCT g.realization ORDER BY g.realization)
		                FILTER (WHERE g.realization IS NOT NULL), '{}') AS realizations
		FROM ensembles e
		LEFT JOIN group_tree_rows g
		       ON g.case_uuid = e.case_uuid AND g.ensemble_name = e.ensemble_name
		GROUP BY e.case_uuid, e.ensemble_name, e.created_at
		ORDER BY e.case_uuid, e.ensemble_name
	`

	rows, err := r.db.QueryContext(ctx, "list_ensembles", query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ensembles: %w", err)
	}
	defer rows.Close()

	var ensembles []*EnsembleInfo
	for rows.Next() {
		var (
			info         EnsembleInfo
			realizations pq.Int64Array
		)
		if err := rows.Scan(&info.CaseUUID, &info.EnsembleName, &info.CreatedAt, &realizations); err != nil {
			return nil, fmt.Errorf("failed to scan ensemble: %w", err)
		}
		info.Realizations = make([]int, len(realizations))
		for i, real := range realizations {
			info.Realizations[i] = int(real)
		}
		ensembles = append(ensembles, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ensembles: %w", err)
	}
	return ensembles, nil
}

// ReplaceGroupTree replaces the stored group tree of a realization. Row order is kept
// since it decides child order in the built networks.
func (r *flowDataRepository) ReplaceGroupTree(ctx context.Context, key EnsembleKey, realization int, rows []models.GroupTreeRow) error {
	timer := time.Now()
	defer func() {
		r.logger.Debug(ctx, "[REPO_REPLACE_TREE] Group tree replaced", logging.Fields{
			"case_uuid":   key.CaseUUID,
			"ensemble":    key.Ensemble,
			"realization": realization,
			"rows":        len(rows),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM group_tree_rows
			WHERE case_uuid = $1 AND ensemble_name = $2 AND realization = $3
		`, key.CaseUUID, key.Ensemble, realization); err != nil {
			return fmt.Errorf("failed to delete group tree: %w", err)
		}

		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO group_tree_rows (
				case_uuid, ensemble_name, realization, row_index,
				date, child, parent, keyword, vfp_table
			)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx,
				key.CaseUUID, key.Ensemble, realization, i,
				row.Date, row.Child, row.Parent, string(row.Keyword), row.VFPTable,
			); err != nil {
				return fmt.Errorf("failed to insert group tree row %d: %w", i, err)
			}
		}
		r.metrics.RecordIngestedRecords("grouptree", len(rows))
		return nil
	})
}

// GetGroupTreeTable returns the group tree of a realization in stored row order
func (r *flowDataRepository) GetGroupTreeTable(ctx context.Context, key EnsembleKey, realization int) (*models.GroupTreeTable, error) {
	query := `
		SELECT date AS "DATE", child AS "CHILD", COALESCE(parent, '') AS "PARENT",
		       keyword AS "KEYWORD", vfp_table AS "VFP_TABLE"
		FROM group_tree_rows
		WHERE case_uuid = $1 AND ensemble_name = $2 AND realization = $3
		ORDER BY row_index
	`

	rows, err := r.db.QueryContext(ctx, "get_group_tree", query, key.CaseUUID, key.Ensemble, realization)
	if err != nil {
		return nil, fmt.Errorf("failed to get group tree: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read group tree columns: %w", err)
	}

	table := &models.GroupTreeTable{Columns: columns}
	for rows.Next() {
		var (
			row     models.GroupTreeRow
			keyword string
		)
		if err := rows.Scan(&row.Date, &row.Child, &row.Parent, &keyword, &row.VFPTable); err != nil {
			return nil, fmt.Errorf("failed to scan group tree row: %w", err)
		}
		row.Date = normalizeDate(row.Date)
		row.Keyword = models.Keyword(keyword)
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group tree: %w", err)
	}

	if len(table.Rows) == 0 {
		return nil, &models.NoDataError{
			Resource: "group tree",
			ID:       fmt.Sprintf("%s realization %d", key, realization),
		}
	}
	return table, nil
}

// ListVectorNames returns the distinct summary vector names stored for the ensemble
func (r *flowDataRepository) ListVectorNames(ctx context.Context, key EnsembleKey) ([]string, error) {
	query := `
		SELECT DISTINCT vector_name
		FROM summary_samples
		WHERE case_uuid = $1 AND ensemble_name = $2
		ORDER BY vector_name
	`

	var names []string
	if err := r.db.SelectContext(ctx, "list_vector_names", &names, query, key.CaseUUID, key.Ensemble); err != nil {
		return nil, fmt.Errorf("failed to list vector names: %w", err)
	}
	return names, nil
}

// GetSummarySamples returns the samples of the named vectors. With a resampling
// frequency the last sample of every period is returned, dated at the period start.
func (r *flowDataRepository) GetSummarySamples(
	ctx context.Context,
	key EnsembleKey,
	realization int,
	vectorNames []string,
	frequency models.Frequency,
) ([]models.SummarySample, error) {
	if len(vectorNames) == 0 {
		return nil, nil
	}

	query, args, err := summarySamplesQuery(key, realization, vectorNames, frequency)
	if err != nil {
		return nil, err
	}

	var samples []models.SummarySample
	if err := r.db.SelectContext(ctx, "get_summary_samples", &samples, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get summary samples: %w", err)
	}
	for i := range samples {
		samples[i].Date = normalizeDate(samples[i].Date)
	}
	return samples, nil
}

// WriteSummarySamples upserts summary samples of a realization in a single transaction
func (r *flowDataRepository) WriteSummarySamples(ctx context.Context, key EnsembleKey, realization int, samples []models.SummarySample) error {
	if len(samples) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		r.metrics.IngestionBatchSize.Observe(float64(len(samples)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Summary batch insert completed", logging.Fields{
			"count":       len(samples),
			"realization": realization,
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO summary_samples (case_uuid, ensemble_name, realization, date, vector_name, value)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (case_uuid, ensemble_name, realization, vector_name, date) DO UPDATE SET
				value = EXCLUDED.value
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range samples {
			if _, err := stmt.ExecContext(ctx, key.CaseUUID, key.Ensemble, realization, s.Date, s.VectorName, s.Value); err != nil {
				return fmt.Errorf("failed to insert summary sample %s: %w", s.VectorName, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.metrics.RecordIngestedRecords("summary", len(samples))
	return nil
}

// summarySamplesQuery selects the raw samples, or with a frequency the latest sample of
// every vector and period, dated at date_trunc of the period.
func summarySamplesQuery(key EnsembleKey, realization int, vectorNames []string, frequency models.Frequency) (string, []interface{}, error) {
	args := []interface{}{key.CaseUUID, key.Ensemble, realization, pq.Array(vectorNames)}
	if frequency == models.FrequencyRaw {
		return `
		SELECT date, vector_name, value
		FROM summary_samples
		WHERE case_uuid = $1 AND ensemble_name = $2 AND realization = $3
		  AND vector_name = ANY($4)
		ORDER BY date, vector_name
	`, args, nil
	}

	field, err := dateTruncField(frequency)
	if err != nil {
		return "", nil, err
	}
	return `
		SELECT period AS date, vector_name, value
		FROM (
			SELECT DISTINCT ON (vector_name, date_trunc($5, date))
			       date_trunc($5, date) AS period, vector_name, value
			FROM summary_samples
			WHERE case_uuid = $1 AND ensemble_name = $2 AND realization = $3
			  AND vector_name = ANY($4)
			ORDER BY vector_name, date_trunc($5, date), date DESC
		) resampled
		ORDER BY period, vector_name
	`, append(args, field), nil
}

// HealthCheck performs a repository health check
func (r *flowDataRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func dateTruncField(frequency models.Frequency) (string, error) {
	switch frequency {
	case models.FrequencyDaily:
		return "day", nil
	case models.FrequencyWeekly:
		return "week", nil
	case models.FrequencyMonthly:
		return "month", nil
	case models.FrequencyQuarterly:
		return "quarter", nil
	case models.FrequencyYearly:
		return "year", nil
	}
	return "", &models.ValidationError{Field: "resampling_frequency", Value: string(frequency), Message: "unsupported frequency"}
}

// normalizeDate drops the driver's location so equal dates compare equal as map keys
func normalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, m, d, h, mi, s, t.Nanosecond(), time.UTC)
}
