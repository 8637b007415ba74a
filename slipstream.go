// Package slipstream lets request handlers written for a legacy web
// framework keep running inside a net/http server, to support incremental
// migration. Legacy routes are wrapped by a [bridge.Bridge] and mounted like
// any other [http.Handler], so new routes can be written against the router
// of your choice while old ones are ported over at their own pace.
//
//	legacy := fiberbridge.New(legacyApp) // existing Fiber routes, untouched
//
//	mux := http.NewServeMux()
//	mux.Handle("/api/v2/", newHandlers)
//	root := slipstream.Fallback(mux, slipstream.New(legacy))
//
// The shim is transparent: status, headers and body bytes come back exactly
// as the legacy handler produced them, and the legacy framework's own error
// pages (404s included) are successful responses as far as the shim is
// concerned. The only failure the shim itself introduces is an adaptation
// failure, reported when the legacy handler cannot be driven to completion.
//
// Limitations: WebSockets and other protocol upgrades are not bridged, and
// HTTP trailers are not forwarded. Routes that depend on either should be
// migrated off the legacy stack first.
package slipstream

import (
	"net/http"

	"github.com/iaconlabs/slipstream/bridge"
)

// Ensure Slipstream itself satisfies the bridge contract, so shims can be
// nested or passed wherever a Bridge is expected.
var _ bridge.Bridge = (*Slipstream)(nil)

// Slipstream is the primary entry point of the library: a thin wrapper over
// a [bridge.Bridge] providing a consistent API regardless of which legacy
// framework sits underneath.
type Slipstream struct {
	bridge bridge.Bridge
}

// New creates a new Slipstream instance using the provided bridge.
func New(b bridge.Bridge) *Slipstream {
	return &Slipstream{bridge: b}
}

// ServeHTTP dispatches the request to the underlying bridge.
func (s *Slipstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.bridge.ServeHTTP(w, r)
}

// Engine returns the raw legacy engine wrapped by the bridge.
func (s *Slipstream) Engine() any {
	return s.bridge.Engine()
}
