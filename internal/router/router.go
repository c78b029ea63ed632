package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/pixelhue/pixel-mosaic/internal/handler" // import the handlers that implement business logic
)

// RegisterRoutes registers routes that do not belong to the claim API on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the four claim API endpoints.
//
// The mutating browser-facing endpoints (claim, personalize) run behind the
// rate limiter.  The read projection runs behind the response cache.  The
// webhook runs behind neither: its traffic comes from the payment gateway,
// is authenticated by the HMAC signature over the raw body, and must not be
// throttled into missed confirmations.
func RegisterAPI(e *echo.Echo, claims *handler.ClaimHandler, webhook *handler.WebhookHandler, colors *handler.ColorsHandler, personalize *handler.PersonalizeHandler, limiter, cache echo.MiddlewareFunc) {
	// Reserve a cell and open a checkout session.
	e.POST("/claim", claims.Reserve, limiter)
	// Aggregate grid view: all live claims plus derived stats.
	e.GET("/colors", colors.ListClaims, cache)
	// Attach a name/blurb to a completed claim.
	e.POST("/personalize", personalize.Personalize, limiter)
	// Signed payment confirmation callback from the gateway.
	e.POST("/webhook", webhook.HandlePaymentCompleted)
}
