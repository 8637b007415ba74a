package fastbridge

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"sort"

	"github.com/valyala/fasthttp"
)

// hopHeaders are transport-hop headers that must not cross the bridge in
// either direction. Forwarding them would corrupt the framing of the outer
// connection. Same set the stdlib reverse proxy strips.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Proxy-Connection":    true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

func isHopHeader(key string) bool {
	return hopHeaders[textproto.CanonicalMIMEHeaderKey(key)]
}

// intoLegacyRequest fills dst with the legacy representation of src.
// Headers keep their multiplicity and per-key value order; cross-key order is
// already a map on the net/http side, so the keys are written in sorted order
// for determinism. The body is attached as a stream, never buffered, and its
// reads fail as soon as ctx is cancelled.
func intoLegacyRequest(ctx context.Context, dst *fasthttp.Request, src *http.Request) {
	dst.Header.SetMethod(src.Method)
	dst.SetRequestURI(src.URL.RequestURI())
	dst.SetHost(src.Host)
	dst.Header.SetProtocol(legacyProtocol(src.Proto))

	keys := make([]string, 0, len(src.Header))
	for k := range src.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if isHopHeader(k) || k == "Content-Length" || k == "Host" {
			continue
		}
		for _, v := range src.Header[k] {
			dst.Header.Add(k, v)
		}
	}

	if src.Body != nil && src.Body != http.NoBody {
		size := -1 // unknown length, read until EOF
		if src.ContentLength >= 0 {
			size = int(src.ContentLength)
		}
		dst.SetBodyStream(&contextReader{ctx: ctx, r: src.Body}, size)
	}
}

// legacyProtocol maps the incoming protocol onto what the legacy stack can
// represent. fasthttp only speaks HTTP/1.x, so anything newer is presented
// as HTTP/1.1, mirroring how the outer server already downgrades framing
// before the handler runs.
func legacyProtocol(proto string) string {
	switch proto {
	case "HTTP/1.0", "HTTP/1.1":
		return proto
	default:
		return "HTTP/1.1"
	}
}

// remoteAddr resolves the peer address of the outer request so the legacy
// handler sees the same caller identity.
func remoteAddr(src *http.Request) net.Addr {
	if src.RemoteAddr == "" {
		return nil
	}
	addr, err := net.ResolveTCPAddr("tcp", src.RemoteAddr)
	if err != nil {
		return nil
	}
	return addr
}

// contextReader makes the legacy handler's request-body reads observe the
// outer call's cancellation: once ctx is done, every subsequent read fails
// with the context error instead of handing out more bytes.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
