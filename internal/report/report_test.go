package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/dhis2"
	"dhis2dupes/internal/users"
)

type fakeFetcher struct {
	records   []users.Record
	units     users.OrgUnitIndex
	usersErr  error
	unitsErr  error
	queries   []dhis2.UserQuery
	unitCalls int
}

func (f *fakeFetcher) FetchUsers(_ context.Context, q dhis2.UserQuery) ([]users.Record, error) {
	f.queries = append(f.queries, q)
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	if q.OrgUnit == "" {
		return f.records, nil
	}
	return users.FilterByOrganisationUnit(f.records, q.OrgUnit), nil
}

func (f *fakeFetcher) FetchOrganisationUnits(context.Context) (users.OrgUnitIndex, error) {
	f.unitCalls++
	return f.units, f.unitsErr
}

func ou(id string) []users.OrgUnitRef { return []users.OrgUnitRef{{ID: id}} }

// Two "Ann Doe" accounts in different units; one "Bob" pair inside OU1.
func roster() []users.Record {
	return []users.Record{
		{ID: "1", Name: users.StringPtr("Ann Doe"), OrganisationUnits: ou("OU1")},
		{ID: "2", Name: users.StringPtr("Ann Doe"), OrganisationUnits: ou("OU2")},
		{ID: "3", Name: users.StringPtr("Bob"), OrganisationUnits: ou("OU1")},
		{ID: "4", Name: users.StringPtr("Bob"), OrganisationUnits: ou("OU1")},
		{ID: "5", Name: users.StringPtr("Cy")},
	}
}

func flags(classified []users.Classified) map[string]users.Flag {
	out := make(map[string]users.Flag, len(classified))
	for _, c := range classified {
		out[c.ID] = c.Duplicate
	}
	return out
}

func TestBuildWholeRoster(t *testing.T) {
	f := &fakeFetcher{records: roster()}
	rep, err := Build(context.Background(), f, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, rep.RunID)
	require.Equal(t, config.ScopeBefore, rep.Scope)
	require.Equal(t, users.Summary{Total: 5, Duplicates: 4, Groups: 2}, rep.Summary)
	require.Len(t, rep.Duplicates(), 4)
	require.Len(t, rep.Groups(), 2)
	require.Equal(t, 0, f.unitCalls)
}

func TestBuildScopeBeforeClassifiesWithinUnit(t *testing.T) {
	f := &fakeFetcher{records: roster()}
	rep, err := Build(context.Background(), f, Options{OrgUnit: "OU1", Scope: "before"})
	require.NoError(t, err)
	require.Equal(t, "OU1", f.queries[0].OrgUnit)
	require.Equal(t, map[string]users.Flag{"1": users.FlagNo, "3": users.FlagYes, "4": users.FlagYes}, flags(rep.Users))
}

func TestBuildScopeAfterKeepsRosterWideFlags(t *testing.T) {
	f := &fakeFetcher{records: roster()}
	rep, err := Build(context.Background(), f, Options{OrgUnit: "OU1", Scope: "AFTER"})
	require.NoError(t, err)
	require.Empty(t, f.queries[0].OrgUnit)
	require.Equal(t, config.ScopeAfter, rep.Scope)
	require.Equal(t, map[string]users.Flag{"1": users.FlagYes, "3": users.FlagYes, "4": users.FlagYes}, flags(rep.Users))
	require.Equal(t, []string{"1", "3", "4"}, []string{rep.Users[0].ID, rep.Users[1].ID, rep.Users[2].ID})
}

func TestBuildEnrichLabels(t *testing.T) {
	f := &fakeFetcher{
		records: roster(),
		units:   users.NewOrgUnitIndex([]users.OrgUnitRef{{ID: "OU1", Name: "Clinic A"}}),
	}
	rep, err := Build(context.Background(), f, Options{Enrich: true, WithIDs: true})
	require.NoError(t, err)
	require.Equal(t, 1, f.unitCalls)
	require.Equal(t, "Clinic A (OU1)", rep.Users[0].OrgUnitLabel)
	require.Equal(t, "OU2", rep.Users[1].OrgUnitLabel)
	require.Empty(t, rep.Users[4].OrgUnitLabel)
}

func TestBuildEnrichFailureFallsBackToEmbeddedNames(t *testing.T) {
	records := roster()
	records[0].OrganisationUnits[0].Name = "Embedded A"
	f := &fakeFetcher{records: records, unitsErr: errors.New("403")}
	rep, err := Build(context.Background(), f, Options{Enrich: true})
	require.NoError(t, err)
	require.Equal(t, "Embedded A", rep.Users[0].OrgUnitLabel)
}

func TestBuildFetchFailureIsNotAnEmptyReport(t *testing.T) {
	boom := errors.New("connection refused")
	rep, err := Build(context.Background(), &fakeFetcher{usersErr: boom}, Options{})
	require.ErrorIs(t, err, boom)
	require.Nil(t, rep)
}

func TestBuildEmptyRoster(t *testing.T) {
	rep, err := Build(context.Background(), &fakeFetcher{}, Options{})
	require.NoError(t, err)
	require.True(t, rep.Empty())
	require.NotNil(t, rep.Users)
}

func TestBuildRejectsUnknownScope(t *testing.T) {
	_, err := Build(context.Background(), &fakeFetcher{}, Options{Scope: "sideways"})
	require.Error(t, err)
}

func TestBuildUsesMemoAndClock(t *testing.T) {
	memo := &users.Memo{}
	f := &fakeFetcher{records: roster()}
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { tick = tick.Add(time.Second); return tick }

	first, err := Build(context.Background(), f, Options{Memo: memo, Now: now})
	require.NoError(t, err)
	second, err := Build(context.Background(), f, Options{Memo: memo, Now: now})
	require.NoError(t, err)

	require.Equal(t, 1, memo.Hits())
	require.Equal(t, first.Summary, second.Summary)
	require.NotEqual(t, first.RunID, second.RunID)
	require.Equal(t, time.Second, first.FinishedAt.Sub(first.StartedAt))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Classification.OrgUnit = "OU1"
	cfg.Classification.EnrichOrgUnits = true
	opts := OptionsFromConfig(&cfg)
	require.Equal(t, "OU1", opts.OrgUnit)
	require.Equal(t, config.ScopeBefore, opts.Scope)
	require.True(t, opts.Enrich)
}
