package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nebnav/internal/lifecycle"
	"nebnav/internal/models"
	"nebnav/internal/storage/sqlite"
)

type stubCategorizer struct {
	drafts []models.Draft
	err    error
}

func (s *stubCategorizer) ExtractTasks(_ context.Context, _ string) ([]models.Draft, error) {
	return s.drafts, s.err
}

type testEnv struct {
	srv   *Server
	store *sqlite.Store
	clock *time.Time
}

func newTestEnv(t *testing.T, cat lifecycle.Categorizer) *testEnv {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "nebby.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	env := &testEnv{store: store, clock: &now}

	opts := []lifecycle.Option{lifecycle.WithClock(func() time.Time { return *env.clock })}
	if cat != nil {
		opts = append(opts, lifecycle.WithCategorizer(cat))
	}
	coord := lifecycle.NewCoordinator(store, lifecycle.NewPolicy(30*24*time.Hour), slog.Default(), opts...)
	scheduler := lifecycle.NewScheduler(coord, 0, slog.Default())

	env.srv = New(coord, store, scheduler, slog.Default(), "")
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(w, req)
	return w
}

func decodeTasks(t *testing.T, w *httptest.ResponseRecorder) []models.Task {
	t.Helper()
	var resp struct {
		Tasks []models.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Tasks
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndListTasks(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tasks", h{
		"tasks": []models.Draft{
			{Text: "Respond to comms", Category: models.CategoryQuietNebula, EffortLevel: 2},
			{Text: "Study asteroid physics", Category: models.CategorySupernova, EffortLevel: 4},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeTasks(t, w)
	require.Len(t, created, 2)
	for _, task := range created {
		assert.Equal(t, models.StateActive, task.State)
	}

	w = env.do(t, http.MethodGet, "/api/tasks?status=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeTasks(t, w), 2)

	w = env.do(t, http.MethodGet, "/api/tasks?status=backlog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeTasks(t, w))
}

func TestCreateTasksUnderExpeditionLandInBacklog(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tasks", h{
		"tasks":      []models.Draft{{Text: "Patch hull", Category: models.CategoryQuietNebula}},
		"expedition": h{"id": "exp-1", "title": "Orion Spur Cleanup"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	created := decodeTasks(t, w)
	require.Len(t, created, 1)
	assert.Equal(t, models.StateBacklog, created[0].State)
	assert.Equal(t, "Orion Spur Cleanup", created[0].ExpeditionTitle)
}

func TestCreateTasksValidationError(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tasks", h{
		"tasks": []models.Draft{{Text: "", Category: models.CategorySupernova}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIllegalTransitionIsConflict(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tasks", h{
		"tasks": []models.Draft{{Text: "one shot", Category: models.CategorySupernova}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeTasks(t, w)[0].ID

	w = env.do(t, http.MethodPost, "/api/tasks/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Completed is terminal.
	w = env.do(t, http.MethodPost, "/api/tasks/"+id+"/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(t, http.MethodPost, "/api/tasks/"+id+"/delegate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnknownTaskIsNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/tasks/ghost/promote", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBrainDumpFailurePreservesText(t *testing.T) {
	env := newTestEnv(t, &stubCategorizer{err: errors.New("model unavailable")})

	w := env.do(t, http.MethodPost, "/api/tasks/braindump", h{"text": "my precious thoughts"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp struct {
		Error string `json:"error"`
		Text  string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "my precious thoughts", resp.Text, "raw input must come back for retry")
	assert.NotEmpty(t, resp.Error)

	// Zero tasks created.
	w = env.do(t, http.MethodGet, "/api/tasks", nil)
	assert.Empty(t, decodeTasks(t, w))
}

func TestBrainDumpReturnsDrafts(t *testing.T) {
	env := newTestEnv(t, &stubCategorizer{drafts: []models.Draft{
		{Text: "Submit flight report", Category: models.CategorySupernova, EffortLevel: 3},
	}})

	w := env.do(t, http.MethodPost, "/api/tasks/braindump", h{"text": "dump"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tasks []models.Draft `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "Submit flight report", resp.Tasks[0].Text)
}

func TestEvaporateEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tasks", h{
		"tasks":      []models.Draft{{Text: "stale cargo", Category: models.CategoryQuietNebula}},
		"expedition": h{"id": "e", "title": "E"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	*env.clock = env.clock.Add(31 * 24 * time.Hour)

	w = env.do(t, http.MethodPost, "/api/evaporate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Moved   int64 `json:"moved"`
		Skipped bool  `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Moved)
	assert.False(t, resp.Skipped)

	w = env.do(t, http.MethodGet, "/api/tasks?status=void", nil)
	assert.Len(t, decodeTasks(t, w), 1)
}

func TestCompleteProducesStar(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tasks", h{
		"tasks": []models.Draft{{Text: "shine", Category: models.CategorySupernova}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeTasks(t, w)[0].ID

	w = env.do(t, http.MethodPost, "/api/tasks/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/stars", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Stars []models.Star `json:"stars"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Stars, 1)
	assert.Equal(t, id, resp.Stars[0].ID)
	assert.Equal(t, "2026-01-01", resp.Stars[0].CompletedDate)
}

func TestLogbookUpsert(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/log", h{"mood": 4, "text": "quiet orbit"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/log", h{"mood": 2, "text": "solar flare"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/log", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Entries []models.LogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, 2, resp.Entries[0].Mood)
	assert.Contains(t, resp.Entries[0].Text, "quiet orbit")
	assert.Contains(t, resp.Entries[0].Text, "solar flare")
}

func TestArchiveEndpointIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tasks", h{
		"tasks": []models.Draft{{Text: "old junk", Category: models.CategoryQuietNebula}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeTasks(t, w)[0].ID

	w = env.do(t, http.MethodDelete, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, "/api/tasks/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, "/api/tasks/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEffortEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tasks", h{
		"tasks": []models.Draft{{Text: "size me", Category: models.CategorySupernova}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeTasks(t, w)[0].ID

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%s/effort", id), h{"energyLevel": 5})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%s/effort", id), h{"energyLevel": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// h mirrors gin.H for request bodies.
type h = map[string]any
