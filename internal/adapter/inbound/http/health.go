package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// HealthResponse is the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status  string            `json:"status"` // "healthy" or "starting"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// SnapshotSource is the part of the session store the health check reads.
type SnapshotSource interface {
	Snapshot() session.State
}

// HealthChecker reports the session store lifecycle.
type HealthChecker struct {
	store   SnapshotSource
	version string
}

// NewHealthChecker creates a HealthChecker. store may be nil.
func NewHealthChecker(store SnapshotSource, version string) *HealthChecker {
	return &HealthChecker{store: store, version: version}
}

// Check reports "starting" while the store is reading storage. A store
// without storage stays Uninitialized and is reported healthy.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	status := "healthy"

	if h.store != nil {
		st := h.store.Snapshot()
		checks["session"] = st.Lifecycle.String()
		checks["session_version"] = fmt.Sprintf("%d", st.Version)
		switch {
		case !st.Identity.Resolved:
			checks["identity"] = "unresolved"
		case st.Identity.IsAuthenticated:
			checks["identity"] = "authenticated"
		default:
			checks["identity"] = "anonymous"
		}
		if st.Lifecycle == session.Hydrating {
			status = "starting"
		}
	} else {
		checks["session"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(health)
	})
}
