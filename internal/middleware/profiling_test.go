package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProfiling(t *testing.T) {
	tests := []struct {
		name        string
		config      ProfilingConfig
		path        string
		wantProfile bool
	}{
		{name: "disabled", config: ProfilingConfig{Enabled: false, Environment: "development"},
			path: "/debug/pprof/", wantProfile: false},
		{name: "enabled in development", config: ProfilingConfig{Enabled: true, Environment: "development"},
			path: "/debug/pprof/", wantProfile: true},
		{name: "named profile", config: ProfilingConfig{Enabled: true, Environment: "development"},
			path: "/debug/pprof/heap", wantProfile: true},
		{name: "refused in production", config: ProfilingConfig{Enabled: true, Environment: "production"},
			path: "/debug/pprof/", wantProfile: false},
		{name: "other paths pass through", config: ProfilingConfig{Enabled: true, Environment: "development"},
			path: "/trending", wantProfile: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			handler := Profiling(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusTeapot)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if tt.wantProfile {
				if nextCalled {
					t.Error("expected pprof to handle the request")
				}
				if rr.Code != http.StatusOK {
					t.Errorf("status = %d, want 200", rr.Code)
				}
			} else if !nextCalled {
				t.Error("expected request to reach the next handler")
			}
		})
	}
}
