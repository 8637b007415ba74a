// Package fiberbridge exposes a legacy Fiber application through the
// [http.Handler] contract. It is a thin shell: the actual translation work
// lives in fastbridge, which speaks the fasthttp representation Fiber is
// built on.
package fiberbridge

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/iaconlabs/slipstream/bridge"
	"github.com/iaconlabs/slipstream/bridge/fastbridge"
)

var _ bridge.Bridge = (*FiberBridge)(nil)

// FiberBridge implements [bridge.Bridge] over a built *fiber.App.
type FiberBridge struct {
	app  *fiber.App
	fast *fastbridge.FastBridge
}

// New wraps the legacy application. Routes must already be registered on app;
// the bridge captures its composed handler and never touches routing again.
func New(app *fiber.App) *FiberBridge {
	return &FiberBridge{
		app:  app,
		fast: fastbridge.New(app.Handler()),
	}
}

// ServeHTTP adapts one exchange through the underlying fastbridge.
func (b *FiberBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.fast.ServeHTTP(w, r)
}

// Engine returns the wrapped *fiber.App.
func (b *FiberBridge) Engine() any { return b.app }

// Shutdown releases resources held by the legacy application (hooks,
// background work). The bridge itself holds no state worth closing.
func (b *FiberBridge) Shutdown(ctx context.Context) error {
	return b.app.ShutdownWithContext(ctx)
}
