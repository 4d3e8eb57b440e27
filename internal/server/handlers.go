package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/dhis2"
	"dhis2dupes/internal/export"
	"dhis2dupes/internal/history"
	"dhis2dupes/internal/logging"
	"dhis2dupes/internal/report"
	"dhis2dupes/internal/textutil"
	"dhis2dupes/internal/users"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type usersResponse struct {
	RunID   string             `json:"runId"`
	OrgUnit string             `json:"orgUnit,omitempty"`
	Scope   string             `json:"scope"`
	Summary users.Summary      `json:"summary"`
	Users   []users.Classified `json:"users"`
}

type summaryResponse struct {
	RunID   string        `json:"runId"`
	OrgUnit string        `json:"orgUnit,omitempty"`
	Scope   string        `json:"scope"`
	Summary users.Summary `json:"summary"`
	Unique  int           `json:"unique"`
}

type groupsResponse struct {
	RunID  string        `json:"runId"`
	Groups []users.Group `json:"groups"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// buildOptions overlays query parameters on the configured report options.
func (s *Server) buildOptions(r *http.Request) (report.Options, error) {
	opts := s.opts.Report
	opts.Logger = s.opts.Logger
	q := r.URL.Query()
	if q.Has("org_unit") {
		opts.OrgUnit = strings.TrimSpace(q.Get("org_unit"))
	}
	if q.Has("scope") {
		scope := strings.ToLower(strings.TrimSpace(q.Get("scope")))
		if scope != config.ScopeBefore && scope != config.ScopeAfter {
			return opts, fmt.Errorf("scope must be %s or %s", config.ScopeBefore, config.ScopeAfter)
		}
		opts.Scope = scope
	}
	if q.Has("enrich") {
		enrich, err := strconv.ParseBool(q.Get("enrich"))
		if err != nil {
			return opts, fmt.Errorf("enrich must be a boolean")
		}
		opts.Enrich = enrich
	}
	return opts, nil
}

func duplicatesOnly(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("duplicates")
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("duplicates must be a boolean")
	}
	return v, nil
}

// build runs a report and writes the error response itself on failure.
func (s *Server) build(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	opts, err := s.buildOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	started := time.Now()
	rep, err := report.Build(r.Context(), s.opts.Fetcher, opts)
	if err != nil {
		s.observeFailure(r, opts, started, err)
		status := http.StatusBadGateway
		message := "dhis2 request failed"
		if errors.Is(err, dhis2.ErrUnauthorized) {
			message = "dhis2 rejected the configured credentials"
		}
		logging.ErrorWithContext(s.logger, "report build failed", "report_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'dhis2dupes check' to verify connectivity"),
		)
		writeError(w, status, message)
		return nil, false
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveSuccess(rep.Summary, rep.FinishedAt)
	}
	return rep, true
}

func (s *Server) observeFailure(r *http.Request, opts report.Options, started time.Time, cause error) {
	finished := time.Now()
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveFailure(finished)
	}
	if s.opts.History == nil {
		return
	}
	_, err := s.opts.History.Record(r.Context(), history.Run{
		Command:    "serve",
		StartedAt:  started,
		FinishedAt: finished,
		BaseURL:    s.opts.BaseURL,
		OrgUnit:    opts.OrgUnit,
		Scope:      opts.Scope,
		Status:     history.StatusFailed,
		Error:      cause.Error(),
	})
	if err != nil {
		logging.WarnWithContext(s.logger, "history record failed", "history_write_failed", logging.Error(err))
	}
}

func (s *Server) recordDownload(r *http.Request, rep *report.Report, output string) {
	if s.opts.History == nil {
		return
	}
	_, err := s.opts.History.Record(r.Context(), history.Run{
		ID:              rep.RunID,
		Command:         "serve",
		StartedAt:       rep.StartedAt,
		FinishedAt:      rep.FinishedAt,
		BaseURL:         s.opts.BaseURL,
		OrgUnit:         rep.OrgUnit,
		Scope:           rep.Scope,
		TotalUsers:      rep.Summary.Total,
		DuplicateUsers:  rep.Summary.Duplicates,
		DuplicateGroups: rep.Summary.Groups,
		Status:          history.StatusSucceeded,
		Outputs:         []string{output},
	})
	if err != nil {
		logging.WarnWithContext(s.logger, "history record failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "download served but not listed in history"),
		)
	}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	dupOnly, err := duplicatesOnly(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	rows := rep.Users
	if dupOnly {
		rows = rep.Duplicates()
	}
	writeJSON(w, http.StatusOK, usersResponse{
		RunID:   rep.RunID,
		OrgUnit: rep.OrgUnit,
		Scope:   rep.Scope,
		Summary: rep.Summary,
		Users:   rows,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		RunID:   rep.RunID,
		OrgUnit: rep.OrgUnit,
		Scope:   rep.Scope,
		Summary: rep.Summary,
		Unique:  rep.Summary.Unique(),
	})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	groups := rep.Groups()
	if groups == nil {
		groups = []users.Group{}
	}
	writeJSON(w, http.StatusOK, groupsResponse{RunID: rep.RunID, Groups: groups})
}

func (s *Server) handleUsersCSV(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	s.serveCSV(w, r, rep, rep.Users, s.basename(rep)+".csv")
}

func (s *Server) handleDuplicatesCSV(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	s.serveCSV(w, r, rep, rep.Duplicates(), s.basename(rep)+"_duplicates.csv")
}

func (s *Server) serveCSV(w http.ResponseWriter, r *http.Request, rep *report.Report, rows []users.Classified, filename string) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows, s.opts.Export); err != nil {
		writeError(w, http.StatusInternalServerError, "render csv failed")
		return
	}
	s.serveFile(w, contentTypeCSV, filename, buf.Bytes())
	s.recordDownload(r, rep, filename)
}

func (s *Server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.build(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, export.Sheets(rep.Users, s.opts.Export), s.opts.Export); err != nil {
		writeError(w, http.StatusInternalServerError, "render xlsx failed")
		return
	}
	filename := s.basename(rep) + ".xlsx"
	s.serveFile(w, contentTypeXLSX, filename, buf.Bytes())
	s.recordDownload(r, rep, filename)
}

func (s *Server) basename(rep *report.Report) string {
	return textutil.ScopedBasename(s.opts.Basename, rep.OrgUnit)
}

func (s *Server) serveFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
