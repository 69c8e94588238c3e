package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIKeyHeader is the request header checked by APIKey.
const APIKeyHeader = "X-API-Key"

const apiKeyGrantedKey = "api_key_granted"

// publicPaths bypass the API key check.
var publicPaths = map[string]bool{
	"/":        true,
	"/health":  true,
	"/metrics": true,
}

// IsPublicPath reports whether the route is an infrastructure endpoint
// reachable without a key.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// APIKey guards state-changing requests: anything other than GET, HEAD or
// OPTIONS must carry an X-API-Key that is one of keys. Reads stay public so
// the browser dashboard and the selection stream work without a key. With no
// keys configured every request is let through.
//
// The outcome is recorded on the context for handlers that accept writes
// over a read route, see APIKeyGranted.
func APIKey(keys []string) echo.MiddlewareFunc {
	valid := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			valid = append(valid, []byte(k))
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			granted := len(valid) == 0 || hasValidKey(c.Request().Header.Get(APIKeyHeader), valid)
			c.Set(apiKeyGrantedKey, granted)

			if granted || isSafeMethod(c.Request().Method) || IsPublicPath(c.Path()) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
		}
	}
}

func hasValidKey(key string, valid [][]byte) bool {
	if key == "" {
		return false
	}
	got := []byte(key)
	for _, k := range valid {
		if subtle.ConstantTimeCompare(got, k) == 1 {
			return true
		}
	}
	return false
}

// APIKeyGranted reports whether the request may change state. It is true
// when APIKey accepted the request's key, when no keys are configured, and
// when APIKey is not installed.
func APIKeyGranted(c echo.Context) bool {
	granted, ok := c.Get(apiKeyGrantedKey).(bool)
	return !ok || granted
}
