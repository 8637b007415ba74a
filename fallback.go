package slipstream

import (
	"bytes"
	"io"
	"net/http"
)

// Fallback serves primary and, whenever primary answers 404 without having
// streamed anything to the client, replays the request into legacy. This is
// the usual migration topology: the new router owns the ported routes, and
// everything it does not recognize falls through to the legacy application.
//
// The request body is buffered so it can be replayed; routes that upload
// large or unbounded bodies should be mounted on one side directly instead
// of going through the fallback.
func Fallback(primary, legacy http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && r.Body != http.NoBody {
			var err error
			body, err = io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "slipstream: adaptation failure", http.StatusInternalServerError)
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		probe := &notFoundInterceptor{w: w}
		primary.ServeHTTP(probe, r)
		if !probe.notFound {
			return
		}

		if body != nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		legacy.ServeHTTP(w, r)
	})
}

// notFoundInterceptor suppresses a primary handler's 404, headers and body
// both, so the exchange can be replayed into the legacy side. Any other
// status passes through untouched.
type notFoundInterceptor struct {
	w        http.ResponseWriter
	wrote    bool // a real response reached the client
	notFound bool // the primary 404 was swallowed
}

func (i *notFoundInterceptor) Header() http.Header { return i.w.Header() }

func (i *notFoundInterceptor) WriteHeader(code int) {
	if i.wrote || i.notFound {
		return
	}
	if code == http.StatusNotFound {
		i.notFound = true
		// Drop whatever headers the primary prepared for its 404 page, the
		// legacy response starts clean.
		clear(i.w.Header())
		return
	}
	i.wrote = true
	i.w.WriteHeader(code)
}

func (i *notFoundInterceptor) Write(p []byte) (int, error) {
	if i.notFound {
		// Discard the primary's 404 body.
		return len(p), nil
	}
	i.wrote = true
	return i.w.Write(p)
}

func (i *notFoundInterceptor) Flush() {
	if i.wrote {
		if f, ok := i.w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
