package middleware

import "github.com/labstack/echo/v4"

// ConfigureIPExtraction sets how the server resolves client addresses. With
// trustProxy the X-Forwarded-For chain is honored, which is required for the
// per-IP registration limit to see real client addresses behind a reverse
// proxy. Without it only the direct peer address is used, so forged headers
// cannot bypass the limit.
func ConfigureIPExtraction(e *echo.Echo, trustProxy bool) {
	if trustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
		return
	}
	e.IPExtractor = echo.ExtractIPDirect()
}
