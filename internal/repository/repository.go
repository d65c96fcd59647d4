package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("stage run not found")

const defaultListLimit = 50

// RunFilter narrows List. Zero values match everything.
type RunFilter struct {
	IngestDate string
	Stage      string
	Entity     string
	Status     models.RunStatus
	Limit      int
}

// RunRepository is the ledger of stage executions.
type RunRepository interface {
	Create(ctx context.Context, run *models.StageRun) error
	Finish(ctx context.Context, run *models.StageRun) error
	Get(ctx context.Context, id string) (*models.StageRun, error)
	List(ctx context.Context, filter RunFilter) ([]models.StageRun, error)
}

type repository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewRunRepository(db *sqlx.DB) RunRepository {
	return &repository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// runRow mirrors the table.
type runRow struct {
	ID         string         `db:"id"`
	Stage      string         `db:"stage"`
	Entity     string         `db:"entity"`
	IngestDate string         `db:"ingest_date"`
	Container  string         `db:"container"`
	Path       string         `db:"path"`
	Rows       int            `db:"row_count"`
	Fallbacks  int            `db:"fallbacks"`
	Status     string         `db:"status"`
	Error      string         `db:"error"`
	StartedAt  string         `db:"started_at"`
	FinishedAt sql.NullString `db:"finished_at"`
}

var runColumns = []string{
	"id", "stage", "entity", "ingest_date", "container", "path",
	"row_count", "fallbacks", "status", "error", "started_at", "finished_at",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func (row runRow) toModel() (models.StageRun, error) {
	started, err := time.Parse(timeLayout, row.StartedAt)
	if err != nil {
		return models.StageRun{}, fmt.Errorf("parse started_at of run %s: %w", row.ID, err)
	}

	run := models.StageRun{
		ID:         row.ID,
		Stage:      row.Stage,
		Entity:     row.Entity,
		IngestDate: row.IngestDate,
		Container:  row.Container,
		Path:       row.Path,
		Rows:       row.Rows,
		Fallbacks:  row.Fallbacks,
		Status:     models.RunStatus(row.Status),
		Error:      row.Error,
		StartedAt:  started,
	}

	if row.FinishedAt.Valid {
		finished, err := time.Parse(timeLayout, row.FinishedAt.String)
		if err != nil {
			return models.StageRun{}, fmt.Errorf("parse finished_at of run %s: %w", row.ID, err)
		}
		run.FinishedAt = &finished
	}

	return run, nil
}

func (r *repository) Create(ctx context.Context, run *models.StageRun) error {
	query, args, err := r.sb.Insert("stage_runs").
		Columns(runColumns...).
		Values(
			run.ID,
			run.Stage,
			run.Entity,
			run.IngestDate,
			run.Container,
			run.Path,
			run.Rows,
			run.Fallbacks,
			string(run.Status),
			run.Error,
			formatTime(run.StartedAt),
			formatOptionalTime(run.FinishedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert stage run: %w", err)
	}
	return nil
}

func (r *repository) Finish(ctx context.Context, run *models.StageRun) error {
	query, args, err := r.sb.Update("stage_runs").
		Set("container", run.Container).
		Set("path", run.Path).
		Set("row_count", run.Rows).
		Set("fallbacks", run.Fallbacks).
		Set("status", string(run.Status)).
		Set("error", run.Error).
		Set("finished_at", formatOptionalTime(run.FinishedAt)).
		Where(sq.Eq{"id": run.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update stage run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id string) (*models.StageRun, error) {
	query, args, err := r.sb.Select(runColumns...).
		From("stage_runs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row runRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get stage run: %w", err)
	}

	run, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns matching runs, newest first.
func (r *repository) List(ctx context.Context, filter RunFilter) ([]models.StageRun, error) {
	eq := sq.Eq{}
	if filter.IngestDate != "" {
		eq["ingest_date"] = filter.IngestDate
	}
	if filter.Stage != "" {
		eq["stage"] = filter.Stage
	}
	if filter.Entity != "" {
		eq["entity"] = filter.Entity
	}
	if filter.Status != "" {
		eq["status"] = string(filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	builder := r.sb.Select(runColumns...).
		From("stage_runs").
		OrderBy("started_at DESC", "id").
		Limit(uint64(limit))
	if len(eq) > 0 {
		builder = builder.Where(eq)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []runRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list stage runs: %w", err)
	}

	runs := make([]models.StageRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toModel()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
