package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAuthSkipper(t *testing.T) {
	tests := []struct {
		path string
		skip bool
	}{
		{"/health", true},
		{"/health/db", true},
		{"/metrics", true},
		{"/api/booking/public", false},
		{"/api/booking/private", false},
		{"/api/patients/me", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), httptest.NewRecorder())
			c.SetPath(tt.path)
			if got := AuthSkipper(c); got != tt.skip {
				t.Errorf("AuthSkipper(%s) = %v, want %v", tt.path, got, tt.skip)
			}
		})
	}
}

func TestPathSkipper_MatchesRoutePattern(t *testing.T) {
	skip := PathSkipper("/api/schedules/:id")
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/schedules/42", nil), httptest.NewRecorder())
	c.SetPath("/api/schedules/:id")
	if !skip(c) {
		t.Error("expected the route pattern to match")
	}
}
