package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/panoramiq/panorex-api/internal/application"
	appevents "github.com/panoramiq/panorex-api/internal/application/events"
	domai "github.com/panoramiq/panorex-api/internal/domain/ai"
	domevents "github.com/panoramiq/panorex-api/internal/domain/events"
	domain "github.com/panoramiq/panorex-api/internal/domain/session"
	"github.com/panoramiq/panorex-api/internal/pdfexport"
	"github.com/panoramiq/panorex-api/internal/progress"
	"github.com/panoramiq/panorex-api/internal/sanitize"
	"github.com/panoramiq/panorex-api/internal/upload"
)

// UserFacingAnalysisError is the only analysis failure text shown to the
// user; the specific cause goes to the usage log.
const UserFacingAnalysisError = "analysis failed, please try again"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoImage          = errors.New("no image uploaded")
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrNoReport         = errors.New("no report available")
)

// Service is the analyzer orchestrator: it owns all session state and
// sequences upload -> validate -> analyze -> render -> export. All
// mutations happen under one mutex; the remote call and the progress
// ticker are the only concurrent entities per session.
type Service struct {
	Validator *upload.Validator
	AI        domai.Client
	Sanitizer *sanitize.Sanitizer
	Exporter  *pdfexport.Exporter
	Logger    *appevents.Logger
	Reports   domain.ReportRepository // optional archive
	Archive   domain.ImageStore       // optional archive
	Clock     application.Clock
	Tick      time.Duration

	// OnAnalysisDone, when set, receives each run's outcome (metrics).
	OnAnalysisDone func(success bool)

	mu       sync.Mutex
	sessions map[domain.ID]*sessionState
}

type sessionState struct {
	sess      domain.Session
	est       *progress.Estimator
	runID     string // current analysis run; stale completions are discarded
	lastError string // generic user-visible message, specific cause is logged
}

// Snapshot is the polling view of one session.
type Snapshot struct {
	domain.Session
	LastError string `json:"last_error,omitempty"`
}

func (s *Service) init() {
	if s.sessions == nil {
		s.sessions = make(map[domain.ID]*sessionState)
	}
	if s.Clock == nil {
		s.Clock = application.SystemClock{}
	}
}

// CreateSession allocates the per-tab session used to correlate usage
// events. It carries no PHI.
func (s *Service) CreateSession() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	st := &sessionState{
		sess: domain.Session{
			ID:        domain.ID(uuid.New().String()),
			State:     domain.StateEmpty,
			CreatedAt: s.Clock.Now(),
		},
		est: progress.NewEstimator(s.Tick),
	}
	s.sessions[st.sess.ID] = st
	return st.sess
}

// Get returns the current snapshot with live progress.
func (s *Service) Get(id domain.ID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	return s.snapshot(st), nil
}

func (s *Service) snapshot(st *sessionState) Snapshot {
	snap := Snapshot{Session: st.sess, LastError: st.lastError}
	snap.Progress = st.est.Value()
	return snap
}

// Upload validates the candidate file and stores it as the session's
// single active image, replacing any previous one and clearing the
// prior report.
func (s *Service) Upload(ctx context.Context, id domain.ID, filename, declaredMIME string, data []byte) (Snapshot, error) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	if st.sess.State == domain.StateAnalyzing {
		s.mu.Unlock()
		return Snapshot{}, ErrAnalysisInFlight
	}
	s.mu.Unlock()

	// Validation failures are user errors, never pipeline failures:
	// they are not logged as usage events.
	mime, err := s.Validator.Validate(filename, declaredMIME, data)
	if err != nil {
		return Snapshot{}, err
	}

	img := &domain.UploadedImage{
		DataURL:  upload.BuildDataURL(mime, data),
		MIMEType: mime,
		Size:     int64(len(data)),
		Filename: filename,
	}

	s.mu.Lock()
	st, ok = s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	if st.sess.State == domain.StateAnalyzing {
		s.mu.Unlock()
		return Snapshot{}, ErrAnalysisInFlight
	}
	st.sess.Image = img
	st.sess.Report = ""
	st.lastError = ""
	st.sess.State = domain.StateImageLoaded
	st.est.Abort()
	st.sess.Progress = 0
	snap := s.snapshot(st)
	s.mu.Unlock()

	s.Logger.Log(string(id), domevents.TypeUpload, map[string]any{
		"filename": filename,
		"mime":     mime,
		"size":     len(data),
	}, "")
	s.archiveUpload(ctx, id, img, data)
	return snap, nil
}

// archiveUpload keeps a best-effort server-side copy of the original.
func (s *Service) archiveUpload(ctx context.Context, id domain.ID, img *domain.UploadedImage, data []byte) {
	if s.Archive == nil {
		return
	}
	key := fmt.Sprintf("sessions/%s/upload/%s", id, img.Filename)
	if _, err := s.Archive.Put(ctx, key, data, img.MIMEType); err != nil {
		log.Printf("image archive failed: session=%s err=%v", id, err)
	}
}

// Analyze starts one remote analysis run in the background. Re-entrant
// calls while a run is in flight are rejected.
func (s *Service) Analyze(id domain.ID) (Snapshot, error) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	if st.sess.State == domain.StateAnalyzing {
		s.mu.Unlock()
		return Snapshot{}, ErrAnalysisInFlight
	}
	if st.sess.Image == nil {
		s.mu.Unlock()
		return Snapshot{}, ErrNoImage
	}

	runID := uuid.New().String()
	st.runID = runID
	st.sess.State = domain.StateAnalyzing
	st.lastError = ""
	st.est.Start()
	dataURL := st.sess.Image.DataURL
	snap := s.snapshot(st)
	s.mu.Unlock()

	s.Logger.Log(string(id), domevents.TypeAnalysisStart, nil, "")

	// Detached from the request context so navigation does not kill the
	// run; the run token discards stale completions instead.
	go func() {
		report, err := s.AI.Analyze(context.Background(), dataURL)
		s.finishAnalysis(id, runID, report, err)
	}()

	return snap, nil
}

func (s *Service) finishAnalysis(id domain.ID, runID, report string, err error) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	if !ok || st.runID != runID || st.sess.State != domain.StateAnalyzing {
		// Session cleared or re-run while we were in flight; drop it.
		s.mu.Unlock()
		return
	}

	if err != nil {
		st.est.Abort()
		st.sess.State = domain.StateImageLoaded
		st.sess.Report = ""
		st.lastError = UserFacingAnalysisError
		s.mu.Unlock()
		s.Logger.Log(string(id), domevents.TypeAnalysisError, nil, err.Error())
		if s.OnAnalysisDone != nil {
			s.OnAnalysisDone(false)
		}
		return
	}

	clean := s.Sanitizer.Clean(report)
	st.est.Complete()
	st.sess.State = domain.StateReportReady
	st.sess.Report = clean
	imageKey := ""
	if st.sess.Image != nil {
		imageKey = fmt.Sprintf("sessions/%s/upload/%s", id, st.sess.Image.Filename)
	}
	s.mu.Unlock()

	s.Logger.Log(string(id), domevents.TypeAnalysisSuccess, nil, "")
	if s.OnAnalysisDone != nil {
		s.OnAnalysisDone(true)
	}
	s.archiveReport(id, imageKey, clean)
}

func (s *Service) archiveReport(id domain.ID, imageKey, report string) {
	if s.Reports == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := &domain.ReportRecord{
		ID:        uuid.New().String(),
		SessionID: string(id),
		ImageKey:  imageKey,
		Report:    report,
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Reports.Save(ctx, rec); err != nil {
		log.Printf("report archive failed: session=%s err=%v", id, err)
	}
}

// Export renders the current report as a PDF. Rejected before any PDF
// library call when no report is present.
func (s *Service) Export(ctx context.Context, id domain.ID, title, filename string) ([]byte, error) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if st.sess.State != domain.StateReportReady || st.sess.Report == "" {
		s.mu.Unlock()
		return nil, ErrNoReport
	}
	doc := pdfexport.Document{
		Title:      title,
		Filename:   filename,
		ReportHTML: st.sess.Report,
	}
	if img := st.sess.Image; img != nil {
		if _, raw, err := upload.DecodeDataURL(img.DataURL); err == nil {
			doc.Images = append(doc.Images, pdfexport.ImageAttachment{
				Filename: img.Filename,
				MIMEType: img.MIMEType,
				Data:     raw,
			})
		}
	}
	s.mu.Unlock()

	s.Logger.Log(string(id), domevents.TypeExportStart, map[string]any{"filename": filename}, "")

	out, err := s.Exporter.Render(doc)
	if err != nil {
		s.Logger.Log(string(id), domevents.TypeExportError, nil, err.Error())
		return nil, err
	}

	s.Logger.Log(string(id), domevents.TypeExportSuccess, map[string]any{"bytes": len(out)}, "")
	if s.Archive != nil {
		key := fmt.Sprintf("sessions/%s/export/%s", id, filename)
		if _, aerr := s.Archive.Put(ctx, key, out, "application/pdf"); aerr != nil {
			log.Printf("pdf archive failed: session=%s err=%v", id, aerr)
		}
	}
	return out, nil
}

// Clear drops image, report and progress from any state. The session
// itself survives so the tab can keep using its identifier.
func (s *Service) Clear(id domain.ID) (Snapshot, error) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionNotFound
	}
	st.runID = "" // invalidate any in-flight run
	st.sess.Image = nil
	st.sess.Report = ""
	st.lastError = ""
	st.sess.State = domain.StateEmpty
	st.est.Abort()
	st.sess.Progress = 0
	snap := s.snapshot(st)
	s.mu.Unlock()

	s.Logger.Log(string(id), domevents.TypeSessionClear, nil, "")
	return snap, nil
}
