package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dhis2dupes/internal/config"
)

// ErrNotFound is returned by Get for unknown run ids.
var ErrNotFound = errors.New("run not found")

// Status is the outcome of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one recorded export or serve request.
type Run struct {
	ID              string    `json:"id" yaml:"id"`
	Command         string    `json:"command" yaml:"command"`
	StartedAt       time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt" yaml:"finishedAt"`
	BaseURL         string    `json:"baseUrl" yaml:"baseUrl"`
	OrgUnit         string    `json:"orgUnit,omitempty" yaml:"orgUnit,omitempty"`
	Scope           string    `json:"scope,omitempty" yaml:"scope,omitempty"`
	TotalUsers      int       `json:"totalUsers" yaml:"totalUsers"`
	DuplicateUsers  int       `json:"duplicateUsers" yaml:"duplicateUsers"`
	DuplicateGroups int       `json:"duplicateGroups" yaml:"duplicateGroups"`
	Status          Status    `json:"status" yaml:"status"`
	Error           string    `json:"error,omitempty" yaml:"error,omitempty"`
	Outputs         []string  `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// Duration is the wall-clock time the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Filter narrows List results.
type Filter struct {
	Since time.Time
	Limit int
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// OpenConfigured opens the history database under paths.state_dir.
func OpenConfigured(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return Open(cfg.HistoryPath())
}

// Open connects to the database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts run. A missing ID is generated; the stored run is returned.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.Command == "" {
		run.Command = "export"
	}
	if run.Status == "" {
		run.Status = StatusSucceeded
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	var outputs any
	if len(run.Outputs) > 0 {
		data, err := json.Marshal(run.Outputs)
		if err != nil {
			return Run{}, fmt.Errorf("marshal outputs: %w", err)
		}
		outputs = string(data)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, command, started_at, finished_at, base_url, org_unit, scope,
            total_users, duplicate_users, duplicate_groups, status, error_message, outputs_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Command,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.BaseURL,
		nullableString(run.OrgUnit),
		nullableString(run.Scope),
		run.TotalUsers,
		run.DuplicateUsers,
		run.DuplicateGroups,
		string(run.Status),
		nullableString(run.Error),
		outputs,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

const selectColumns = `id, command, started_at, finished_at, base_url, org_unit, scope,
    total_users, duplicate_users, duplicate_groups, status, error_message, outputs_json`

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Run, error) {
	query := "SELECT " + selectColumns + " FROM runs"
	var args []any
	if !filter.Since.IsZero() {
		query += " WHERE started_at >= ?"
		args = append(args, formatTime(filter.Since))
	}
	query += " ORDER BY started_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                 Run
		started, finished   string
		orgUnit, scope      sql.NullString
		status              string
		errText, outputJSON sql.NullString
	)
	if err := row.Scan(
		&run.ID, &run.Command, &started, &finished, &run.BaseURL, &orgUnit, &scope,
		&run.TotalUsers, &run.DuplicateUsers, &run.DuplicateGroups, &status, &errText, &outputJSON,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	run.OrgUnit = orgUnit.String
	run.Scope = scope.String
	run.Status = Status(status)
	run.Error = errText.String
	if outputJSON.Valid && outputJSON.String != "" {
		if err := json.Unmarshal([]byte(outputJSON.String), &run.Outputs); err != nil {
			return nil, fmt.Errorf("decode outputs for run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}

// Timestamps are stored as fixed-width UTC strings so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
