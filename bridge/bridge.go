// Package bridge defines the contract shared by every legacy-framework
// bridge, plus the single error kind a bridge is allowed to produce.
//
// A bridge wraps a legacy application's composed handler and exposes it as a
// plain [http.Handler], so that legacy routes can be mounted into any
// net/http based server during a migration. The bridge performs no routing
// and has no opinion on HTTP semantics: whatever the legacy handler answers
// (its own 404s included) is a successful bridged call.
package bridge

import (
	"errors"
	"net/http"
)

// ErrAdaptation is the only error a bridge produces: the legacy handler
// could not be driven to completion (it panicked, or a body stream failed
// mid-transfer). Responses the legacy handler produced on its own are never
// wrapped in this error.
var ErrAdaptation = errors.New("slipstream: legacy handler could not be driven to completion")

// Bridge is the contract that every legacy-framework bridge implements.
// It keeps no state between calls; each call is an independent
// translate → invoke → translate sequence.
type Bridge interface {
	// ServeHTTP adapts the request into the legacy representation, invokes
	// the wrapped handler, and adapts the result back. If the caller's
	// context is cancelled before the legacy handler completes, no response
	// is written.
	http.Handler

	// Engine returns the wrapped legacy engine (e.g. *fiber.App).
	Engine() any
}

// Failure reports an adaptation failure to the caller. It is only valid
// before any part of the response has been written; failures that occur
// mid-stream can no longer change the response and are handled by aborting
// the connection instead.
func Failure(w http.ResponseWriter) {
	http.Error(w, "slipstream: adaptation failure", http.StatusInternalServerError)
}
