package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/panoramiq/panorex-api/internal/application/analyzer"
	domai "github.com/panoramiq/panorex-api/internal/domain/ai"
	domevents "github.com/panoramiq/panorex-api/internal/domain/events"
	domain "github.com/panoramiq/panorex-api/internal/domain/session"
	"github.com/panoramiq/panorex-api/internal/infra/identity"
	"github.com/panoramiq/panorex-api/internal/middleware"
	"github.com/panoramiq/panorex-api/internal/upload"
)

// IdentityProvider is the slice of the identity client the router needs.
type IdentityProvider interface {
	SignUp(ctx context.Context, creds identity.Credentials) (*identity.Token, error)
	SignIn(ctx context.Context, creds identity.Credentials) (*identity.Token, error)
	Verify(ctx context.Context, accessToken string) error
}

type Router struct {
	analyzer  *analyzer.Service
	recorder  domevents.Recorder
	reports   domain.ReportRepository
	identity  IdentityProvider
	maxUpload int64
}

type Options struct {
	Analyzer  *analyzer.Service
	Recorder  domevents.Recorder
	Reports   domain.ReportRepository
	Identity  IdentityProvider
	Health    http.HandlerFunc
	MaxUpload int64
}

func NewRouter(opts Options) http.Handler {
	r := &Router{
		analyzer:  opts.Analyzer,
		recorder:  opts.Recorder,
		reports:   opts.Reports,
		identity:  opts.Identity,
		maxUpload: opts.MaxUpload,
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 10 << 20
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	if opts.Health != nil {
		mux.Get("/health", opts.Health)
	} else {
		mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("ok"))
		})
	}
	mux.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/sessions", r.wrap(r.handleCreateSession))
		rt.Route("/sessions/{id}", func(rs chi.Router) {
			rs.Get("/", r.wrap(r.handleGetSession))
			rs.Post("/image", r.wrap(r.handleUpload))
			rs.Post("/analyze", r.wrap(r.handleAnalyze))
			rs.Post("/export", r.wrap(r.handleExport))
			rs.Delete("/", r.wrap(r.handleClear))
		})

		if r.identity != nil {
			rt.Post("/auth/signup", r.wrap(r.handleSignUp))
			rt.Post("/auth/signin", r.wrap(r.handleSignIn))

			rt.Route("/stats", func(rs chi.Router) {
				rs.Use(middleware.BearerAuth(r.identity))
				rs.Get("/usage", r.wrap(r.handleUsageStats))
				rs.Get("/reports", r.wrap(r.handleReports))
			})
		}
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, analyzer.ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
		case errors.Is(err, upload.ErrEmptyFile),
			errors.Is(err, upload.ErrFileTooLarge),
			errors.Is(err, upload.ErrDisallowedType):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, analyzer.ErrAnalysisInFlight),
			errors.Is(err, analyzer.ErrNoImage),
			errors.Is(err, analyzer.ErrNoReport):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, identity.ErrInvalidCredentials):
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, domai.ErrQuotaExceeded):
			http.Error(w, "analysis quota exceeded", http.StatusTooManyRequests)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func sessionID(req *http.Request) domain.ID {
	return domain.ID(chi.URLParam(req, "id"))
}

// POST /v1/sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	sess := r.analyzer.CreateSession()
	return writeJSON(w, http.StatusCreated, sess)
}

// GET /v1/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	snap, err := r.analyzer.Get(sessionID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, snap)
}

// POST /v1/sessions/{id}/image
// multipart/form-data with a single "image" part
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+(1<<20))
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		return fmt.Errorf("%w: multipart body too large or malformed", upload.ErrFileTooLarge)
	}
	file, header, err := req.FormFile("image")
	if err != nil {
		return fmt.Errorf("missing image part: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	snap, err := r.analyzer.Upload(req.Context(), sessionID(req), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, snap)
}

// POST /v1/sessions/{id}/analyze
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	snap, err := r.analyzer.Analyze(sessionID(req))
	if err != nil {
		return err
	}
	// Accepted: the run finishes in the background, poll the session.
	return writeJSON(w, http.StatusAccepted, snap)
}

// POST /v1/sessions/{id}/export
// Body: {"title": "...", "filename": "..."} (both optional)
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Title    string `json:"title"`
		Filename string `json:"filename"`
	}
	if req.Body != nil {
		_ = json.NewDecoder(req.Body).Decode(&body) // empty body is fine
	}
	if body.Title == "" {
		body.Title = "Panorex Analysis Report"
	}
	if body.Filename == "" {
		body.Filename = "panorex-report.pdf"
	}

	out, err := r.analyzer.Export(req.Context(), sessionID(req), body.Title, body.Filename)
	if err != nil {
		middleware.ExportsTotal.WithLabelValues("error").Inc()
		return err
	}
	middleware.ExportsTotal.WithLabelValues("success").Inc()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", body.Filename))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(out)
	return err
}

// DELETE /v1/sessions/{id}
func (r *Router) handleClear(w http.ResponseWriter, req *http.Request) error {
	snap, err := r.analyzer.Clear(sessionID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, snap)
}

func decodeCredentials(req *http.Request) (identity.Credentials, error) {
	var creds identity.Credentials
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
		return creds, fmt.Errorf("invalid request body: %w", err)
	}
	if creds.Email == "" || creds.Password == "" {
		return creds, fmt.Errorf("email and password are required: %w", identity.ErrInvalidCredentials)
	}
	return creds, nil
}

// POST /v1/auth/signup
func (r *Router) handleSignUp(w http.ResponseWriter, req *http.Request) error {
	creds, err := decodeCredentials(req)
	if err != nil {
		return err
	}
	tok, err := r.identity.SignUp(req.Context(), creds)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, tok)
}

// POST /v1/auth/signin
func (r *Router) handleSignIn(w http.ResponseWriter, req *http.Request) error {
	creds, err := decodeCredentials(req)
	if err != nil {
		return err
	}
	tok, err := r.identity.SignIn(req.Context(), creds)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, tok)
}

// GET /v1/stats/usage?days=7&limit=50
func (r *Router) handleUsageStats(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	counts, err := r.recorder.CountByType(req.Context(), days)
	if err != nil {
		return err
	}
	recent, err := r.recorder.Recent(req.Context(), limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"counts": counts,
		"recent": recent,
	})
}

// GET /v1/stats/reports?page=&page_size=
func (r *Router) handleReports(w http.ResponseWriter, req *http.Request) error {
	if r.reports == nil {
		return writeJSON(w, http.StatusOK, []any{})
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.reports.Paginate(req.Context(), page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}
