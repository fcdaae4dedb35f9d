// Package health serves the /health endpoint over a set of named dependency
// checks.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Registry holds the checks run on every health request.
type Registry struct {
	names  []string
	checks map[string]Check
	limit  time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{checks: make(map[string]Check), limit: timeout}
}

// Add registers check under name, replacing any earlier check of that name.
func (r *Registry) Add(name string, check Check) {
	if _, ok := r.checks[name]; !ok {
		r.names = append(r.names, name)
		sort.Strings(r.names)
	}
	r.checks[name] = check
}

// Run executes every check sequentially within the registry timeout.
func (r *Registry) Run(ctx context.Context) (Report, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.limit)
	defer cancel()

	rep := Report{Status: "healthy", Checks: make(map[string]string, len(r.names))}
	healthy := true
	for _, name := range r.names {
		if err := r.checks[name](ctx); err != nil {
			rep.Checks[name] = err.Error()
			healthy = false
			continue
		}
		rep.Checks[name] = "ok"
	}
	if !healthy {
		rep.Status = "unhealthy"
	}
	return rep, healthy
}

func (r *Registry) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		rep, ok := r.Run(c.Request().Context())
		if !ok {
			return c.JSON(http.StatusServiceUnavailable, rep)
		}
		return c.JSON(http.StatusOK, rep)
	}
}
