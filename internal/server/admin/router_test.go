package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/cv-keeper/internal/errs"
)

type fakeMaintainer struct {
	resynced []string
	tampered map[string][]int64
	err      error
}

func (f *fakeMaintainer) Resync(_ context.Context, cvID string) error {
	if f.err != nil {
		return f.err
	}
	f.resynced = append(f.resynced, cvID)
	return nil
}

func (f *fakeMaintainer) VerifyCV(_ context.Context, cvID string) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tampered[cvID], nil
}

func serve(t *testing.T, h *Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(t, NewHandler(&fakeMaintainer{}, nil, zaptest.NewLogger(t)), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	down := func(context.Context) error { return errors.New("db down") }
	rec := serve(t, NewHandler(&fakeMaintainer{}, down, zaptest.NewLogger(t)), http.MethodGet, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	up := func(context.Context) error { return nil }
	rec = serve(t, NewHandler(&fakeMaintainer{}, up, zaptest.NewLogger(t)), http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResync(t *testing.T) {
	m := &fakeMaintainer{}
	rec := serve(t, NewHandler(m, nil, zaptest.NewLogger(t)), http.MethodPost, "/admin/cvs/cv-1/resync")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"cv-1"}, m.resynced)

	rec = serve(t, NewHandler(m, nil, zaptest.NewLogger(t)), http.MethodGet, "/admin/cvs/cv-1/resync")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestResync_Errors(t *testing.T) {
	m := &fakeMaintainer{err: fmt.Errorf("cv-1: %w", errs.ErrInvalidSequence)}
	rec := serve(t, NewHandler(m, nil, zaptest.NewLogger(t)), http.MethodPost, "/admin/cvs/cv-1/resync")
	require.Equal(t, http.StatusConflict, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "invalid_sequence", body.Error.Code)
	require.NotEmpty(t, body.Error.RequestID)
}

func TestVerify(t *testing.T) {
	m := &fakeMaintainer{tampered: map[string][]int64{"cv-2": {3}}}
	h := NewHandler(m, nil, zaptest.NewLogger(t))

	rec := serve(t, h, http.MethodGet, "/admin/cvs/cv-1/verify")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"cvId":"cv-1","valid":true,"tampered":[]}`, rec.Body.String())

	rec = serve(t, h, http.MethodGet, "/admin/cvs/cv-2/verify")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"cvId":"cv-2","valid":false,"tampered":[3]}`, rec.Body.String())
}

func TestVerify_NotFound(t *testing.T) {
	m := &fakeMaintainer{err: errs.ErrNotFound}
	rec := serve(t, NewHandler(m, nil, zaptest.NewLogger(t)), http.MethodGet, "/admin/cvs/nope/verify")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
