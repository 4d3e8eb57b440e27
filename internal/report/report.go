// Package report runs one fetch-classify-annotate pass against DHIS2.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/dhis2"
	"dhis2dupes/internal/logging"
	"dhis2dupes/internal/users"
)

const tracerName = "dhis2dupes/internal/report"

// Fetcher is the subset of the DHIS2 client a report needs.
type Fetcher interface {
	FetchUsers(ctx context.Context, query dhis2.UserQuery) ([]users.Record, error)
	FetchOrganisationUnits(ctx context.Context) (users.OrgUnitIndex, error)
}

var _ Fetcher = (*dhis2.Client)(nil)

// Options controls a single build.
type Options struct {
	// OrgUnit restricts the report to users assigned to the unit.
	OrgUnit string
	// Scope is config.ScopeBefore or config.ScopeAfter. Empty means before.
	Scope string
	// Enrich fetches the organisation unit index for labels. Without it,
	// labels use the names embedded in user payloads.
	Enrich bool
	// WithIDs renders labels as "name (id)" pairs.
	WithIDs bool
	// Memo, when set, reuses the previous classification for identical rosters.
	Memo   *users.Memo
	Logger *slog.Logger
	Now    func() time.Time
}

// Report is the result of one build. It is never cached across runs.
type Report struct {
	RunID      string             `json:"runId" yaml:"runId"`
	StartedAt  time.Time          `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt" yaml:"finishedAt"`
	OrgUnit    string             `json:"orgUnit,omitempty" yaml:"orgUnit,omitempty"`
	Scope      string             `json:"scope" yaml:"scope"`
	Users      []users.Classified `json:"users" yaml:"users"`
	Summary    users.Summary      `json:"summary" yaml:"summary"`
}

// Duplicates returns the flagged users in roster order.
func (r *Report) Duplicates() []users.Classified {
	return users.FilterDuplicates(r.Users)
}

// Groups returns the duplicate groups in first-appearance order.
func (r *Report) Groups() []users.Group {
	return users.Groups(r.Users)
}

// Empty reports whether the roster had no users.
func (r *Report) Empty() bool { return r.Summary.Total == 0 }

// Build fetches the roster and classifies it. A fetch failure is returned as
// an error, never as an empty report.
func Build(ctx context.Context, fetcher Fetcher, opts Options) (*Report, error) {
	scope, err := normalizeScope(opts.Scope)
	if err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	unit := strings.TrimSpace(opts.OrgUnit)

	rep := &Report{
		RunID:     uuid.NewString(),
		StartedAt: now(),
		OrgUnit:   unit,
		Scope:     scope,
	}
	ctx = logging.WithRunID(ctx, rep.RunID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "report"))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "report.Build", trace.WithAttributes(
		attribute.String("dhis2dupes.run_id", rep.RunID),
		attribute.String("dhis2dupes.org_unit", unit),
		attribute.String("dhis2dupes.scope", scope),
	))
	defer span.End()

	query := dhis2.UserQuery{}
	if scope == config.ScopeBefore {
		query.OrgUnit = unit
	}
	records, err := fetcher.FetchUsers(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch users")
		return nil, err
	}

	classify := users.Classify
	if opts.Memo != nil {
		classify = opts.Memo.Classify
	}

	var view []users.Classified
	switch {
	case unit == "":
		view = classify(records)
	case scope == config.ScopeBefore:
		view = classify(users.FilterByOrganisationUnit(records, unit))
	default:
		view = users.FilterClassifiedByOrganisationUnit(classify(records), unit)
	}

	index := users.EmbeddedIndex(records)
	if opts.Enrich {
		fetched, err := fetcher.FetchOrganisationUnits(ctx)
		if err != nil {
			logging.WarnWithContext(logger, "organisation unit lookup failed", "orgunit_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "labels use names embedded in user records"),
				logging.String(logging.FieldErrorHint, "check the account can read organisationUnits"),
			)
		} else {
			index = fetched
		}
	}
	users.Annotate(view, index, opts.WithIDs)

	rep.Users = view
	rep.Summary = users.Summarize(view)
	rep.FinishedAt = now()

	span.SetAttributes(
		attribute.Int("dhis2dupes.users", rep.Summary.Total),
		attribute.Int("dhis2dupes.duplicates", rep.Summary.Duplicates),
	)
	logger.Info("report built",
		logging.Int("users", rep.Summary.Total),
		logging.Int("duplicates", rep.Summary.Duplicates),
		logging.Int("groups", rep.Summary.Groups),
		logging.String(logging.FieldOrgUnit, unit),
		logging.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)),
	)
	return rep, nil
}

func normalizeScope(scope string) (string, error) {
	switch s := strings.ToLower(strings.TrimSpace(scope)); s {
	case "", config.ScopeBefore:
		return config.ScopeBefore, nil
	case config.ScopeAfter:
		return config.ScopeAfter, nil
	default:
		return "", fmt.Errorf("invalid org unit scope %q (want %s or %s)", scope, config.ScopeBefore, config.ScopeAfter)
	}
}

// OptionsFromConfig seeds build options from the [classification] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		OrgUnit: cfg.Classification.OrgUnit,
		Scope:   cfg.Classification.OrgUnitScope,
		Enrich:  cfg.Classification.EnrichOrgUnits,
		WithIDs: cfg.Classification.ShowOrgUnitIDs,
	}
}
