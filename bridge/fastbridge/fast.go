// Package fastbridge exposes a legacy fasthttp request handler (typically a
// built Fiber application's app.Handler()) through the [http.Handler]
// contract, so legacy routes keep serving inside a net/http server during a
// migration.
//
// Each call is one independent translate → invoke → translate sequence. The
// bridge owns no shared mutable state beyond a [fasthttp.RequestCtx] pool,
// imposes no timeouts, and has no opinion on HTTP semantics: whatever the
// legacy handler answers, its own 404s included, is relayed verbatim.
//
// Not supported: HTTP trailers and protocol upgrades (WebSockets). Routes
// that need either should be migrated off the legacy stack first.
package fastbridge

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/iaconlabs/slipstream/bridge"
	"github.com/valyala/fasthttp"
)

var _ bridge.Bridge = (*FastBridge)(nil)

var fctxPool = sync.Pool{
	New: func() any { return new(fasthttp.RequestCtx) },
}

func acquireCtx() *fasthttp.RequestCtx {
	return fctxPool.Get().(*fasthttp.RequestCtx)
}

func releaseCtx(fctx *fasthttp.RequestCtx) {
	// Reset also closes any leftover body stream.
	fctx.Request.Reset()
	fctx.Response.Reset()
	fctxPool.Put(fctx)
}

// FastBridge implements [bridge.Bridge] over a raw fasthttp handler.
type FastBridge struct {
	handler fasthttp.RequestHandler
}

// New wraps the composed legacy handler. The handler is treated as opaque
// and infallible: routing misses are valid responses, not errors.
func New(handler fasthttp.RequestHandler) *FastBridge {
	return &FastBridge{handler: handler}
}

// Engine returns the wrapped [fasthttp.RequestHandler].
func (b *FastBridge) Engine() any { return b.handler }

// ServeHTTP adapts one exchange. The legacy handler runs in its own
// goroutine so the outer call can observe cancellation: if the caller's
// context is cancelled first, ServeHTTP returns without writing a response,
// the handler's next body read fails with the context error, and the pooled
// ctx is recycled only once the handler has actually returned.
func (b *FastBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fctx := acquireCtx()
	// Init wires the ctx to fasthttp's fake server, so a legacy handler that
	// uses it as a context.Context (Done, Err, Value) does not hit a nil
	// dereference. It also installs the peer address and resets the request.
	var seed fasthttp.Request
	fctx.Init(&seed, remoteAddr(r), nil)
	intoLegacyRequest(ctx, &fctx.Request, r)

	var panicked any
	invoked := make(chan struct{})
	go func() {
		defer close(invoked)
		defer func() { panicked = recover() }()
		b.handler(fctx)
	}()

	select {
	case <-invoked:
		// A cancelled call never produces a response, even if the legacy
		// handler happened to finish in the same instant.
		if ctx.Err() != nil {
			releaseCtx(fctx)
			slog.Debug("slipstream: bridged call cancelled", "method", r.Method, "uri", r.RequestURI, "cause", ctx.Err())
			return
		}
	case <-ctx.Done():
		// Abandon the exchange. The ctx goes back to the pool once the
		// legacy handler has stopped touching it.
		go func() {
			<-invoked
			releaseCtx(fctx)
		}()
		slog.Debug("slipstream: bridged call cancelled", "method", r.Method, "uri", r.RequestURI, "cause", ctx.Err())
		return
	}

	if panicked != nil {
		releaseCtx(fctx)
		slog.Error("slipstream: legacy handler panicked", "method", r.Method, "uri", r.RequestURI, "error", bridge.ErrAdaptation, "panic", panicked)
		bridge.Failure(w)
		return
	}

	err := intoResponse(ctx, w, &fctx.Response)
	releaseCtx(fctx)
	if err != nil {
		// The status line is already on the wire; the only honest move is
		// to abort the connection so the caller sees a broken exchange
		// rather than a silently truncated success.
		if ctx.Err() != nil {
			slog.Debug("slipstream: bridged call cancelled mid-response", "method", r.Method, "uri", r.RequestURI, "cause", ctx.Err())
		} else {
			slog.Error("slipstream: adaptation failure mid-response", "method", r.Method, "uri", r.RequestURI, "error", err)
		}
		panic(http.ErrAbortHandler)
	}
}
