// Package echobridge exposes a legacy Echo application through the
// [bridge.Bridge] contract.
//
// Echo already serves the net/http representation natively, so this is the
// thin end of the contract: no translation layer, no goroutine handoff.
// Cancellation reaches the legacy handlers through the request context as
// usual, and streamed bodies flow straight through Echo's response writer.
// The package exists so migration code can treat every legacy framework the
// same way, whichever side of the representation divide it sits on.
package echobridge

import (
	"net/http"

	"github.com/iaconlabs/slipstream/bridge"
	"github.com/labstack/echo/v5"
)

var _ bridge.Bridge = (*EchoBridge)(nil)

// EchoBridge implements [bridge.Bridge] over a legacy *echo.Echo.
type EchoBridge struct {
	app *echo.Echo
}

// New wraps the legacy application. Routes must already be registered on app.
func New(app *echo.Echo) *EchoBridge {
	return &EchoBridge{app: app}
}

// ServeHTTP delegates to the legacy engine.
func (b *EchoBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.app.ServeHTTP(w, r)
}

// Engine returns the wrapped *echo.Echo.
func (b *EchoBridge) Engine() any { return b.app }
