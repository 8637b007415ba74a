package slipstream

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery returns a middleware that recovers from panics escaping the
// handler below it, logs the failure, and answers 500 to the client.
// If stack is true, the stack trace is included in the log and the response.
//
// [http.ErrAbortHandler] is re-panicked untouched: bridges use it to abort a
// connection whose response is already half-written, and swallowing it would
// turn a broken exchange into a silently truncated success.
func Recovery(stack bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				trace := ""
				if stack {
					trace = string(debug.Stack())
				}
				slog.Error("slipstream: panic recovered", "method", r.Method, "uri", r.RequestURI, "panic", err, "stack", trace)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)

				body := `{"error": "Internal Server Error"}`
				if stack {
					body = fmt.Sprintf(`{"error": %q}`, fmt.Sprintf("%v\n\n%s", err, trace))
				}
				_, _ = w.Write([]byte(body))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
