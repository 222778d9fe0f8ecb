package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker(t *testing.T) {
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	now := start
	h := NewHealthChecker(10*time.Minute, 3)
	h.startTime = start
	h.now = func() time.Time { return now }

	assert.Equal(t, "healthy", h.Status().Status)

	now = start.Add(11 * time.Minute)
	assert.Equal(t, "degraded", h.Status().Status)

	h.CycleSucceeded()
	assert.Equal(t, "healthy", h.Status().Status)

	for i := 0; i < 3; i++ {
		h.CycleFailed(errors.New("exchange down"))
	}
	st := h.Status()
	assert.Equal(t, "unhealthy", st.Status)
	assert.Equal(t, "exchange down", st.LastError)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}
