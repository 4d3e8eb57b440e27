package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhis2dupes/internal/dhis2"
	"dhis2dupes/internal/export"
	"dhis2dupes/internal/history"
	"dhis2dupes/internal/metrics"
	"dhis2dupes/internal/testsupport"
	"dhis2dupes/internal/users"
)

type stubFetcher struct {
	records []users.Record
	err     error
}

func (f *stubFetcher) FetchUsers(_ context.Context, q dhis2.UserQuery) ([]users.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if q.OrgUnit != "" {
		return users.FilterByOrganisationUnit(f.records, q.OrgUnit), nil
	}
	return f.records, nil
}

func (f *stubFetcher) FetchOrganisationUnits(context.Context) (users.OrgUnitIndex, error) {
	return users.OrgUnitIndex{}, nil
}

type memoryHistory struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memoryHistory) Record(_ context.Context, run history.Run) (history.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return run, nil
}

func fixture() []users.Record {
	unit := []users.OrgUnitRef{{ID: "OU1", Name: "Clinic A"}}
	return []users.Record{
		{ID: "1", Username: "ann", Name: users.StringPtr("Ann Doe"), OrganisationUnits: unit},
		{ID: "2", Username: "ann2", Name: users.StringPtr("Ann Doe")},
		{ID: "3", Username: "bob", Name: users.StringPtr("Bob"), OrganisationUnits: unit},
	}
}

func newTestServer(t *testing.T, fetcher *stubFetcher, mutate func(*Options)) (*Server, *memoryHistory) {
	t.Helper()
	hist := &memoryHistory{}
	opts := Options{
		Fetcher:  fetcher,
		Export:   export.Options{IncludeOrgUnits: true},
		Basename: "roster",
		Metrics:  metrics.New(),
		History:  hist,
		BaseURL:  "https://dhis2.example.org",
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := New(opts)
	require.NoError(t, err)
	return srv, hist
}

func do(t *testing.T, srv *Server, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{}, nil)
	rec := do(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUsersEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{records: fixture()}, nil)

	rec := do(t, srv, "/api/users")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp usersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 3)
	assert.Equal(t, users.Summary{Total: 3, Duplicates: 2, Groups: 1}, resp.Summary)
	assert.Equal(t, users.FlagYes, resp.Users[0].Duplicate)
	assert.Equal(t, "Clinic A", resp.Users[0].OrgUnitLabel)

	rec = do(t, srv, "/api/users?duplicates=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 2)
}

func TestUsersEndpointLargeRoster(t *testing.T) {
	units := []users.OrgUnitRef{{ID: "OU1", Name: "Clinic A"}, {ID: "OU2", Name: "Clinic B"}}
	roster := testsupport.RandomRoster(42, 400, units)
	twin := roster[10]
	twin.ID = "twin-of-10"
	roster = append(roster, twin)
	want := users.Classify(roster)

	srv, _ := newTestServer(t, &stubFetcher{records: roster}, nil)
	rec := do(t, srv, "/api/users")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp usersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Users, len(roster))
	assert.Equal(t, users.Summarize(want), resp.Summary)
	for i := range want {
		require.Equal(t, want[i].ID, resp.Users[i].ID)
		require.Equal(t, want[i].Duplicate, resp.Users[i].Duplicate, "user %s", want[i].ID)
	}
	assert.Equal(t, users.FlagYes, resp.Users[10].Duplicate)
	assert.Equal(t, users.FlagYes, resp.Users[len(roster)-1].Duplicate)
}

func TestUsersScopeQuery(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{records: fixture()}, nil)

	var before, after usersResponse
	rec := do(t, srv, "/api/users?org_unit=OU1&scope=before")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.Equal(t, 0, before.Summary.Duplicates)

	rec = do(t, srv, "/api/users?org_unit=OU1&scope=after")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Equal(t, 1, after.Summary.Duplicates)
	assert.Equal(t, "after", after.Scope)
}

func TestBadQueryIs400(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{records: fixture()}, nil)
	for _, target := range []string{"/api/users?scope=sideways", "/api/users?duplicates=maybe", "/api/summary?enrich=perhaps"} {
		rec := do(t, srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestFetchFailureIs502AndRecorded(t *testing.T) {
	srv, hist := newTestServer(t, &stubFetcher{err: &dhis2.StatusError{Endpoint: "/api/users.json", StatusCode: 401}}, nil)
	rec := do(t, srv, "/api/summary")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "rejected the configured credentials")
	require.Len(t, hist.runs, 1)
	assert.Equal(t, history.StatusFailed, hist.runs[0].Status)

	srv, _ = newTestServer(t, &stubFetcher{err: errors.New("dial tcp: refused")}, nil)
	rec = do(t, srv, "/export/users.csv")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestCSVDownloads(t *testing.T) {
	srv, hist := newTestServer(t, &stubFetcher{records: fixture()}, nil)

	rec := do(t, srv, "/export/duplicates.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="roster_duplicates.csv"`, rec.Header().Get("Content-Disposition"))
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "ann", "Ann Doe", "Clinic A", "Yes"}, rows[1])

	rec = do(t, srv, "/export/users.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	rows, err = csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	require.Len(t, hist.runs, 2)
	assert.Equal(t, []string{"roster_duplicates.csv"}, hist.runs[0].Outputs)
	assert.Equal(t, 3, hist.runs[1].TotalUsers)
}

func TestXLSXDownload(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{records: fixture()}, nil)
	rec := do(t, srv, "/export/users.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")
}

func TestScopedDownloadName(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{records: fixture()}, nil)
	rec := do(t, srv, "/export/users.xlsx?org_unit=OU1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="roster_ou1.xlsx"`, rec.Header().Get("Content-Disposition"))
}

func TestTokenRequired(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{records: fixture()}, func(o *Options) { o.Token = "s3cret" })

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, "/api/users").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, "/api/users", "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, "/api/users", "Authorization", "Bearer s3cret2").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, "/api/users", "Authorization", "s3cret").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, "/api/users", "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, "/healthz").Code)
}

func TestMetricsEndpointReflectsLastBuild(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{records: fixture()}, nil)
	require.Equal(t, http.StatusOK, do(t, srv, "/api/summary").Code)

	rec := do(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dhis2dupes_users_total 3")
}

func TestStartAndStop(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{}, func(o *Options) { o.Bind = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	srv.Stop()
}

func TestNewRequiresFetcher(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
