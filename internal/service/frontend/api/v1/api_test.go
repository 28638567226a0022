package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/streamdesk/streamdesk/internal/license"
	api "github.com/streamdesk/streamdesk/internal/service/frontend/api/v1"
)

// fakeService wraps a test manager and records activations and invalidations.
type fakeService struct {
	*license.Manager

	mu            sync.Mutex
	activate      func(domain, key string) license.ActivationOutcome
	invalidations int
	calls         []string
}

func newFakeService(tier license.Tier) *fakeService {
	return &fakeService{Manager: license.NewTestManager(tier)}
}

func (s *fakeService) Activate(ctx context.Context, domain, key string) license.ActivationOutcome {
	s.record("activate")
	if s.activate != nil {
		return s.activate(domain, key)
	}
	return s.Manager.Activate(ctx, domain, key)
}

func (s *fakeService) Invalidate() {
	s.mu.Lock()
	s.invalidations++
	s.mu.Unlock()
	s.record("invalidate")
	s.Manager.Invalidate()
}

func (s *fakeService) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeService) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// fakeWriter records persisted settings.
type fakeWriter struct {
	svc     *fakeService
	saveErr error
	saved   [][2]string
	cleared int
}

func (w *fakeWriter) SaveLicense(domain, key string) error {
	if w.svc != nil {
		w.svc.record("save")
	}
	if w.saveErr != nil {
		return w.saveErr
	}
	w.saved = append(w.saved, [2]string{domain, key})
	return nil
}

func (w *fakeWriter) ClearLicense() error {
	w.cleared++
	return nil
}

type testServer struct {
	router http.Handler
	svc    *fakeService
	writer *fakeWriter
}

func setupServer(t *testing.T, tier license.Tier) *testServer {
	t.Helper()
	svc := newFakeService(tier)
	writer := &fakeWriter{svc: svc}
	r := chi.NewRouter()
	api.New(svc, writer, nil, nil).ConfigureRoutes(r)
	return &testServer{router: r, svc: svc, writer: writer}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var errDiskFull = errors.New("disk full")
