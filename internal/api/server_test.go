package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ldsarchive/talkscraper/internal/scraper"
	"github.com/ldsarchive/talkscraper/internal/store"
)

func testServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })
	return NewServer(st, nil), st
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestGetStats(t *testing.T) {
	s, st := testServer(t)
	ctx := context.Background()
	_, err := st.AddCollection(ctx, scraper.LocaleEnglish,
		"https://www.churchofjesuschrist.org/study/general-conference/2024/04?lang=eng", time.Now())
	require.NoError(t, err)

	rec := get(t, s, "/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.Locales[scraper.LocaleEnglish].Collections.Total)
	require.Equal(t, 1, stats.Locales[scraper.LocaleEnglish].Collections.Pending)
}

func TestGetLog(t *testing.T) {
	s, st := testServer(t)
	ctx := context.Background()
	require.NoError(t, st.AppendLog(ctx, scraper.LogEntry{
		Operation: scraper.OpCollect,
		Locale:    scraper.LocaleEnglish,
		URL:       "https://example.org/index",
		Status:    scraper.StatusSuccess,
		Message:   "found 2 conferences, 2 new",
		Timestamp: time.Now().UTC(),
	}))

	rec := get(t, s, "/v1/log/collect")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Operation string             `json:"operation"`
		Entries   []scraper.LogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, scraper.OpCollect, payload.Operation)
	require.Len(t, payload.Entries, 1)
	require.Equal(t, scraper.StatusSuccess, payload.Entries[0].Status)
}

func TestGetLogUnknownOperation(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/v1/log/nonsense")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
