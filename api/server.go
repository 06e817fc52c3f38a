package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"skillgap/fsutil"
	"skillgap/logger"
	"skillgap/remote"
	"skillgap/scheduler"
	"skillgap/service"
	"skillgap/skill"
	"skillgap/store"
)

const maxBodyBytes = 1 << 20

// Server implements the JSON HTTP API for skillgap.
type Server struct {
	svc       *service.Service
	sched     *scheduler.Scheduler
	log       logger.Logger
	authToken string
}

// NewServer creates a new API server. sched may be nil.
func NewServer(svc *service.Service, sched *scheduler.Scheduler, log logger.Logger, authToken string) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		svc:       svc,
		sched:     sched,
		log:       log,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/skills", s.handleSkills)
	mux.HandleFunc("/v1/marketplace", s.handleMarketplace)
	mux.HandleFunc("/v1/gaps", s.handleGaps)
	mux.HandleFunc("/v1/deps", s.handleDeps)
	mux.HandleFunc("/v1/import", s.handleImport)
	mux.HandleFunc("/v1/delete", s.handleDelete)
	mux.HandleFunc("/v1/install", s.handleInstall)
	mux.HandleFunc("/v1/activity", s.handleActivity)
	mux.HandleFunc("/v1/jobs", s.handleJobs)
	mux.HandleFunc("/v1/jobs/", s.handleJobTrigger)

	if s.authToken == "" {
		return mux
	}
	return s.authMiddleware(mux)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health check is always public
		if r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("Authorization")
		if token != "Bearer "+s.authToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := map[string]any{
		"status":    "ok",
		"workspace": s.svc.Workspace(),
		"sources":   s.svc.Remote().Registry().Len(),
	}
	if rl, ok := s.svc.Remote().RateLimit(); ok {
		resp["rate_limit"] = rl
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	group, err := skill.ParseGroup(q.Get("group"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var recs []skill.Record
	if q.Get("refresh") == "1" {
		recs = s.svc.Scan(r.Context()).Records
	} else {
		recs = s.svc.Records(r.Context())
	}
	writeJSON(w, http.StatusOK, group.Filter(recs))
}

func (s *Server) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cat, err := s.svc.Catalog(r.Context(), r.URL.Query().Get("refresh") == "1")
	if err != nil {
		s.log.Error("api.marketplace_failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	ref, err := service.ParseReference(q.Get("against"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.svc.Gaps(r.Context(), ref, q.Get("refresh") == "1")
	if err != nil {
		s.log.Error("api.gaps_failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Dependencies(r.Context()))
}

// importRequest names global-library skills to import. When Names is empty
// the body is decoded as a record argument instead.
type importRequest struct {
	Names []string `json:"names"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req importRequest
	if body[0] == '{' {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if len(req.Names) > 0 {
		writeJSON(w, http.StatusOK, s.svc.Import(r.Context(), req.Names))
		return
	}

	arg, err := skill.DecodeRecordArg(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "body must name skills or carry a skill record")
		return
	}
	rec, err := s.svc.Resolve(r.Context(), arg, skill.GroupGlobal)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	report := s.svc.ImportRecords(r.Context(), []skill.Record{rec})
	status := http.StatusOK
	if len(report.Failures) > 0 {
		status = statusFor(report.Failures[0].Err)
	}
	writeJSON(w, status, report)
}

// deleteRequest names one local skill. When Name is empty the body is
// decoded as a record argument instead.
type deleteRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var (
		loc string
		err error
	)
	var req deleteRequest
	if body[0] == '{' {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.Name != "" {
		loc, err = s.svc.DeleteNamed(r.Context(), req.Name)
	} else {
		arg, derr := skill.DecodeRecordArg(body)
		if derr != nil {
			writeError(w, http.StatusBadRequest, "body must name a skill or carry a skill record")
			return
		}
		rec, rerr := s.svc.Resolve(r.Context(), arg, skill.GroupAll)
		if rerr != nil {
			writeServiceError(w, rerr)
			return
		}
		loc, err = s.svc.Delete(r.Context(), rec)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"trashed_to": loc})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req service.InstallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	dest, err := s.svc.Install(ctx, req)
	if err != nil {
		s.log.Error("api.install_failed", logger.Err(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"installed_to": dest})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	filter := store.OperationFilter{
		Kind:      store.OpKind(q.Get("kind")),
		SkillName: q.Get("skill"),
		Failed:    q.Get("failed") == "1",
		Limit:     parseIntParam(q.Get("limit"), 50),
		Offset:    parseIntParam(q.Get("offset"), 0),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	history, err := s.svc.History(ctx, filter)
	if err != nil {
		if !errors.Is(err, service.ErrNoLedger) {
			s.log.Error("api.activity_failed", logger.Err(err))
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.sched == nil {
		writeJSON(w, http.StatusOK, []scheduler.JobStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Jobs())
}

// POST /v1/jobs/{name} triggers an immediate run.
func (s *Server) handleJobTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if name == "" {
		writeError(w, http.StatusBadRequest, "job name required")
		return
	}
	if s.sched == nil {
		writeError(w, http.StatusNotFound, "no background jobs configured")
		return
	}
	if err := s.sched.Trigger(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Info("api.job_triggered", logger.String("job", name))
	writeJSON(w, http.StatusAccepted, map[string]string{"job": name})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "request body required")
		return nil, false
	}
	return body, true
}

func statusFor(err error) int {
	// ErrAllSourcesFailed wraps the per-source errors, so it is checked first.
	switch {
	case errors.Is(err, remote.ErrAllSourcesFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrUnknownSkill), errors.Is(err, remote.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fsutil.ErrDestinationExists):
		return http.StatusConflict
	case errors.Is(err, remote.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrNoLedger):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
