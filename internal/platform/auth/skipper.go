package auth

import (
	"github.com/labstack/echo/v4"
)

// publicRoutes are reachable without a bearer token: infrastructure probes
// and the stateless inference endpoints.
var publicRoutes = map[string]bool{
	"/health":                   true,
	"/metrics":                  true,
	"/api/diagnose":             true,
	"/api/lab-tests":            true,
	"/api/nlp/extract-symptoms": true,
}

// Skipper matches on the registered route, so query strings and path
// parameters do not matter.
func Skipper(c echo.Context) bool {
	return publicRoutes[c.Path()]
}

func IsPublicRoute(path string) bool {
	return publicRoutes[path]
}
