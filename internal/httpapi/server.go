package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/service"
)

type Dependencies struct {
	Logger *log.Logger
	Addr   string
	Lockup *service.LockupService
	Quals  *service.QualificationEngine
	Alerts *service.AlertService
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux
	lockup     *service.LockupService
	quals      *service.QualificationEngine
	alerts     *service.AlertService
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger: d.Logger,
		mux:    mux,
		lockup: d.Lockup,
		quals:  d.Quals,
		alerts: d.Alerts,
	}

	mux.HandleFunc("GET /v1/lockup/status", s.handleStatus)
	mux.HandleFunc("POST /v1/lockup/acquire", s.handleAcquire)
	mux.HandleFunc("POST /v1/lockup/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/lockup/execute", s.handleExecute)
	mux.HandleFunc("GET /v1/lockup/checkout_options", s.handleCheckoutOptions)
	mux.HandleFunc("GET /v1/lockup/history", s.handleHistory)
	mux.HandleFunc("GET /v1/lockup/present", s.handlePresent)
	mux.HandleFunc("POST /v1/qualifications/sync", s.handleSyncAll)
	mux.HandleFunc("POST /v1/qualifications/sync/{memberID}", s.handleSyncMember)
	mux.HandleFunc("GET /v1/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /v1/alerts/{alertID}/acknowledge", s.handleAcknowledgeAlert)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.lockup.Status(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.fail(w, "lockup status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req acquireRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := s.lockup.Acquire(r.Context(), req.toDomain())
	if err != nil {
		s.fail(w, "lockup acquire", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.lockup.Transfer(r.Context(), req.toDomain())
	if err != nil {
		s.fail(w, "lockup transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.lockup.Execute(r.Context(), req.toDomain())
	if err != nil {
		s.fail(w, "lockup execute", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCheckoutOptions(w http.ResponseWriter, r *http.Request) {
	memberID := r.URL.Query().Get("member_id")
	if memberID == "" {
		writeError(w, http.StatusBadRequest, "missing_member_id", "member_id query parameter is required")
		return
	}
	opts, err := s.lockup.CheckoutOptions(r.Context(), memberID)
	if err != nil {
		s.fail(w, "checkout options", err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), 0)
	offset := queryInt(q.Get("offset"), 0)

	page, err := s.lockup.History(r.Context(), q.Get("start_date"), q.Get("end_date"), limit, offset)
	if err != nil {
		s.fail(w, "lockup history", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handlePresent(w http.ResponseWriter, r *http.Request) {
	snap, err := s.lockup.PresentSnapshot(r.Context())
	if err != nil {
		s.fail(w, "present snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.quals.SyncAll(r.Context())
	if err != nil {
		s.fail(w, "qualification sync", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSyncMember(w http.ResponseWriter, r *http.Request) {
	res, err := s.quals.SyncMember(r.Context(), r.PathValue("memberID"))
	if err != nil {
		s.fail(w, "qualification sync member", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.alerts.ListActive(r.Context())
	if err != nil {
		s.fail(w, "list alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, alertsResponse(alerts))
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.alerts.Acknowledge(r.Context(), r.PathValue("alertID"), req.AcknowledgedBy); err != nil {
		s.fail(w, "acknowledge alert", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if writeFault(w, err) {
		return
	}
	s.logger.Printf("%s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func queryInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
