package fastbridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/iaconlabs/slipstream/bridge"
	"github.com/valyala/fasthttp"
)

// relayChunkSize bounds how much of a streamed legacy body is held in memory
// at once while relaying it to the caller.
const relayChunkSize = 32 * 1024

// intoResponse writes the legacy response back through the new framework's
// writer: status first, then headers in the legacy wire order (multiplicity
// preserved, hop-by-hop stripped), then the body. Streamed legacy bodies are
// relayed chunk by chunk with a flush between chunks, so arbitrarily large
// responses never accumulate in memory.
//
// A non-nil error means the exchange broke after the status line was already
// committed; at that point the response can no longer be repaired, only
// aborted. Transfer failures wrap [bridge.ErrAdaptation]; a cancelled ctx
// surfaces the context error instead.
func intoResponse(ctx context.Context, w http.ResponseWriter, resp *fasthttp.Response) error {
	header := w.Header()
	resp.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		if isHopHeader(key) || key == "Content-Length" {
			return
		}
		header.Add(key, string(v))
	})

	status := resp.StatusCode()
	if !bodyAllowed(status) {
		w.WriteHeader(status)
		return nil
	}

	// fasthttp only materializes Content-Length when it serializes the
	// response itself, so it has to be reconstructed here. Unknown stream
	// lengths stay unset and net/http falls back to chunked transfer.
	if resp.IsBodyStream() {
		if n := resp.Header.ContentLength(); n >= 0 {
			header.Set("Content-Length", strconv.Itoa(n))
		}
		w.WriteHeader(status)
		return relayStream(ctx, w, resp.BodyStream())
	}

	body := resp.Body()
	header.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)

	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("%w: writing legacy body: %w", bridge.ErrAdaptation, err)
		}
	}
	return nil
}

// bodyAllowed reports whether status permits a message body. 1xx, 204 and
// 304 responses must carry neither a body nor a Content-Length header.
func bodyAllowed(status int) bool {
	return status >= http.StatusOK &&
		status != http.StatusNoContent &&
		status != http.StatusNotModified
}

// relayStream forwards body bytes in original order without buffering the
// whole stream, flushing after every chunk so slow consumers see progress.
func relayStream(ctx context.Context, w http.ResponseWriter, body io.Reader) error {
	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, relayChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("%w: relaying legacy body: %w", bridge.ErrAdaptation, err)
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("%w: reading legacy body stream: %w", bridge.ErrAdaptation, readErr)
		}
	}
}
