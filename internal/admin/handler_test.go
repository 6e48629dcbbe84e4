package admin_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agritrust/internal/admin"
	"agritrust/pkg/platform/audit"
	auditmemory "agritrust/pkg/platform/audit/store/memory"
)

func newRouter(t *testing.T, events *auditmemory.InMemoryStore) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	admin.New(events, logger, "secret").Register(router)
	return router
}

func seedEvents(t *testing.T, events *auditmemory.InMemoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := events.Append(context.Background(), audit.Event{
			ID:          uuid.New(),
			Category:    audit.CategoryCompliance,
			Action:      string(audit.EventFarmerRegistered),
			Subject:     "farmer-a",
			LogicalTime: uint64(i + 1),
		})
		require.NoError(t, err)
	}
}

func TestListRecent(t *testing.T) {
	events := auditmemory.NewInMemoryStore()
	seedEvents(t, events, 5)
	router := newRouter(t, events)

	t.Run("requires the admin token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/audit/events", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("lists newest first with a limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit/events?limit=3", nil)
		req.Header.Set("X-Admin-Token", "secret")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got []audit.Event
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		require.Len(t, got, 3)
		assert.Equal(t, uint64(5), got[0].LogicalTime)
	})

	t.Run("rejects a bad limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/audit/events?limit=zero", nil)
		req.Header.Set("X-Admin-Token", "secret")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListBySubject(t *testing.T) {
	events := auditmemory.NewInMemoryStore()
	seedEvents(t, events, 2)
	router := newRouter(t, events)

	req := httptest.NewRequest(http.MethodGet, "/admin/audit/farmers/farmer-a", nil)
	req.Header.Set("X-Admin-Token", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got []audit.Event
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Len(t, got, 2)
}
