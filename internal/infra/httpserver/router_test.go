package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panoramiq/panorex-api/internal/application/analyzer"
	appevents "github.com/panoramiq/panorex-api/internal/application/events"
	domevents "github.com/panoramiq/panorex-api/internal/domain/events"
	"github.com/panoramiq/panorex-api/internal/infra/identity"
	"github.com/panoramiq/panorex-api/internal/pdfexport"
	"github.com/panoramiq/panorex-api/internal/sanitize"
	"github.com/panoramiq/panorex-api/internal/upload"
)

type stubAI struct {
	report string
	err    error
}

func (s *stubAI) Analyze(context.Context, string) (string, error) { return s.report, s.err }

type stubRecorder struct {
	mu     sync.Mutex
	events []*domevents.UsageEvent
}

func (s *stubRecorder) Record(_ context.Context, e *domevents.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *stubRecorder) Recent(context.Context, int) ([]*domevents.UsageEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domevents.UsageEvent(nil), s.events...), nil
}

func (s *stubRecorder) CountByType(context.Context, int) ([]*domevents.TypeCount, error) {
	return []*domevents.TypeCount{{EventType: domevents.TypeUpload, Count: 1}}, nil
}

type stubIdentity struct {
	token     string
	signInErr error
}

func (s *stubIdentity) SignUp(_ context.Context, _ identity.Credentials) (*identity.Token, error) {
	return &identity.Token{AccessToken: s.token, TokenType: "bearer"}, nil
}

func (s *stubIdentity) SignIn(_ context.Context, _ identity.Credentials) (*identity.Token, error) {
	if s.signInErr != nil {
		return nil, s.signInErr
	}
	return &identity.Token{AccessToken: s.token, TokenType: "bearer"}, nil
}

func (s *stubIdentity) Verify(_ context.Context, tok string) error {
	if tok != s.token {
		return identity.ErrInvalidCredentials
	}
	return nil
}

func newTestServer(t *testing.T, ai *stubAI) (*httptest.Server, *stubRecorder) {
	t.Helper()
	rec := &stubRecorder{}
	svc := &analyzer.Service{
		Validator: upload.NewValidator(1<<20, []string{"image/png", "image/jpeg"}),
		AI:        ai,
		Sanitizer: sanitize.NewReportSanitizer(),
		Exporter:  pdfexport.NewExporter(),
		Logger:    appevents.NewLogger(rec),
		Tick:      time.Millisecond,
	}
	h := NewRouter(Options{
		Analyzer: svc,
		Recorder: rec,
		Identity: &stubIdentity{token: "valid-token"},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, rec
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sess struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	require.NotEmpty(t, sess.ID)
	return sess.ID
}

func multipartPNG(t *testing.T, field, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 16, 16))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func getSession(t *testing.T, srv *httptest.Server, id string) map[string]any {
	t.Helper()
	resp, err := http.Get(srv.URL + "/v1/sessions/" + id + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func waitForHTTPState(t *testing.T, srv *httptest.Server, id, want string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snap := getSession(t, srv, id)
		if snap["state"] == want {
			return snap
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for state %s (at %v)", want, snap["state"])
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestRouter_SessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, &stubAI{report: "<p>ok</p>"})
	id := createSession(t, srv)

	snap := getSession(t, srv, id)
	assert.Equal(t, "empty", snap["state"])

	body, contentType := multipartPNG(t, "image", "pano.png")
	resp, err := http.Post(srv.URL+"/v1/sessions/"+id+"/image", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/sessions/"+id+"/analyze", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	snap = waitForHTTPState(t, srv, id, "reportReady")
	assert.Equal(t, "<p>ok</p>", snap["report"])
	assert.Equal(t, float64(100), snap["progress"])

	// export
	resp, err = http.Post(srv.URL+"/v1/sessions/"+id+"/export", "application/json", strings.NewReader(`{"filename":"out.pdf"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "out.pdf")

	// clear
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/"+id+"/", nil)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	snap = getSession(t, srv, id)
	assert.Equal(t, "empty", snap["state"])
	assert.Nil(t, snap["report"])
}

func TestRouter_UploadRejectsBadType(t *testing.T) {
	srv, _ := newTestServer(t, &stubAI{})
	id := createSession(t, srv)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/v1/sessions/"+id+"/image", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRouter_AnalyzeWithoutImageConflicts(t *testing.T) {
	srv, _ := newTestServer(t, &stubAI{})
	id := createSession(t, srv)

	resp, err := http.Post(srv.URL+"/v1/sessions/"+id+"/analyze", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRouter_ExportWithoutReportConflicts(t *testing.T) {
	srv, _ := newTestServer(t, &stubAI{})
	id := createSession(t, srv)

	resp, err := http.Post(srv.URL+"/v1/sessions/"+id+"/export", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRouter_UnknownSessionIs404(t *testing.T) {
	srv, _ := newTestServer(t, &stubAI{})

	resp, err := http.Get(srv.URL + "/v1/sessions/does-not-exist/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_AnalysisFailureSurfacesGenerically(t *testing.T) {
	srv, rec := newTestServer(t, &stubAI{err: errors.New("socket reset by peer")})
	id := createSession(t, srv)

	body, contentType := multipartPNG(t, "image", "pano.png")
	resp, err := http.Post(srv.URL+"/v1/sessions/"+id+"/image", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/v1/sessions/"+id+"/analyze", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	snap := waitForHTTPState(t, srv, id, "imageLoaded")
	assert.Equal(t, analyzer.UserFacingAnalysisError, snap["last_error"])
	assert.NotContains(t, snap["last_error"], "socket", "specific cause must stay out of user responses")
	assert.Equal(t, float64(0), snap["progress"])

	// specific message lands in the usage log instead
	deadline := time.After(2 * time.Second)
	for {
		rec.mu.Lock()
		var found bool
		for _, e := range rec.events {
			if e.EventType == domevents.TypeAnalysisError && e.ErrorMessage == "socket reset by peer" {
				found = true
			}
		}
		rec.mu.Unlock()
		if found {
			break
		}
		select {
		case <-deadline:
			t.Fatal("analysis_error usage event never recorded")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestRouter_StatsRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t, &stubAI{})

	resp, err := http.Get(srv.URL + "/v1/stats/usage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/stats/usage", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out, "counts")
	assert.Contains(t, out, "recent")
}

func TestRouter_SignInMapsCredentials(t *testing.T) {
	rec := &stubRecorder{}
	svc := &analyzer.Service{
		Validator: upload.NewValidator(1<<20, []string{"image/png"}),
		AI:        &stubAI{},
		Sanitizer: sanitize.NewReportSanitizer(),
		Exporter:  pdfexport.NewExporter(),
		Logger:    appevents.NewLogger(rec),
		Tick:      time.Millisecond,
	}
	h := NewRouter(Options{
		Analyzer: svc,
		Recorder: rec,
		Identity: &stubIdentity{token: "tok", signInErr: identity.ErrInvalidCredentials},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/v1/auth/signin", "application/json",
		strings.NewReader(`{"email":"doc@example.com","password":"wrong"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
