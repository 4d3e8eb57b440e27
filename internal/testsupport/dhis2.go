package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"

	"dhis2dupes/internal/users"
)

// FakeDHIS2 serves the handful of DHIS2 endpoints the client calls.
type FakeDHIS2 struct {
	*httptest.Server

	mu       sync.Mutex
	token    string
	users    []users.Record
	orgUnits []users.OrgUnitRef
	requests []string
}

// NewFakeDHIS2 starts a fake instance serving the given roster.
func NewFakeDHIS2(t testing.TB, roster []users.Record, orgUnits []users.OrgUnitRef) *FakeDHIS2 {
	t.Helper()

	fake := &FakeDHIS2{token: "d2pat_test", users: roster, orgUnits: orgUnits}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.Close)
	return fake
}

// Requests returns the request paths served so far, query included.
func (f *FakeDHIS2) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// SetToken changes the accepted "ApiToken" credential. Any other
// Authorization header gets 401.
func (f *FakeDHIS2) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// SetUsers replaces the served roster.
func (f *FakeDHIS2) SetUsers(roster []users.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = roster
}

func (f *FakeDHIS2) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.RequestURI())
	roster := f.users
	units := f.orgUnits
	token := f.token
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "ApiToken "+token {
		http.Error(w, `{"httpStatus":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/api/users.json":
		filter := strings.TrimPrefix(r.URL.Query().Get("filter"), "organisationUnits.id:eq:")
		if filter != "" {
			roster = users.FilterByOrganisationUnit(roster, filter)
		}
		payload := make([]map[string]any, 0, len(roster))
		for _, u := range roster {
			payload = append(payload, userJSON(u))
		}
		writeJSON(w, map[string]any{"users": payload})
	case "/api/organisationUnits.json":
		writeJSON(w, map[string]any{"organisationUnits": units})
	case "/api/me.json", "/api/me":
		writeJSON(w, map[string]any{"id": "M5zQapPyTZI", "username": "admin", "name": "John Traore", "displayName": "John Traore"})
	default:
		http.NotFound(w, r)
	}
}

func userJSON(u users.Record) map[string]any {
	roles := make([]map[string]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, map[string]string{"name": role})
	}
	out := map[string]any{
		"id":                u.ID,
		"username":          u.Username,
		"name":              u.Name,
		"organisationUnits": u.OrganisationUnits,
		"userRoles":         roles,
	}
	if u.Email != "" {
		out["email"] = u.Email
	}
	return out
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// RandomRoster generates n distinct-looking accounts from a seeded faker.
// Names can collide; callers that need exact duplicates should append them.
func RandomRoster(seed uint64, n int, orgUnits []users.OrgUnitRef) []users.Record {
	f := gofakeit.New(seed)
	out := make([]users.Record, 0, n)
	for i := 0; i < n; i++ {
		rec := users.Record{
			ID:       f.LetterN(11),
			Username: f.Username(),
			Name:     users.StringPtr(f.Name()),
			Email:    f.Email(),
			Roles:    []string{f.RandomString([]string{"Data entry", "Superuser", "Tracker"})},
		}
		if len(orgUnits) > 0 {
			rec.OrganisationUnits = []users.OrgUnitRef{orgUnits[i%len(orgUnits)]}
		}
		out = append(out, rec)
	}
	return out
}
