package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker reports whether evaluation cycles are completing
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	lastCycle     time.Time
	maxSilence    time.Duration
	failureStreak int
	maxFailures   int
	lastError     string
	now           func() time.Time
}

type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastCycle     time.Time `json:"last_cycle"`
	FailureStreak int       `json:"failure_streak"`
	Uptime        string    `json:"uptime"`
	LastError     string    `json:"last_error,omitempty"`
}

// NewHealthChecker reports degraded when no cycle completed within maxSilence
// and unhealthy after maxFailures consecutive failed cycles.
func NewHealthChecker(maxSilence time.Duration, maxFailures int) *HealthChecker {
	return &HealthChecker{
		startTime:   time.Now(),
		maxSilence:  maxSilence,
		maxFailures: maxFailures,
		now:         time.Now,
	}
}

// CycleSucceeded records a completed cycle
func (h *HealthChecker) CycleSucceeded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = h.now()
	h.failureStreak = 0
	h.lastError = ""
}

// CycleFailed records a failed cycle
func (h *HealthChecker) CycleFailed(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failureStreak++
	if err != nil {
		h.lastError = err.Error()
	}
}

// Status computes the current health
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := "healthy"
	since := h.lastCycle
	if since.IsZero() {
		since = h.startTime
	}
	if h.maxSilence > 0 && now.Sub(since) > h.maxSilence {
		status = "degraded"
	}
	if h.maxFailures > 0 && h.failureStreak >= h.maxFailures {
		status = "unhealthy"
	}
	return HealthStatus{
		Status:        status,
		Timestamp:     now,
		LastCycle:     h.lastCycle,
		FailureStreak: h.failureStreak,
		Uptime:        now.Sub(h.startTime).Round(time.Second).String(),
		LastError:     h.lastError,
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()
	w.Header().Set("Content-Type", "application/json")
	switch health.Status {
	case "degraded":
		w.WriteHeader(http.StatusServiceUnavailable)
	case "unhealthy":
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}
