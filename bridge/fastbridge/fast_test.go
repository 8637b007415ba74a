package fastbridge_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/iaconlabs/slipstream/bridge"
	"github.com/iaconlabs/slipstream/bridge/fastbridge"
	"github.com/valyala/fasthttp"
)

// probeHandler is the raw legacy handler serving the canonical contract
// routes documented on bridge.RunBridgeContract.
func probeHandler(fctx *fasthttp.RequestCtx) {
	switch string(fctx.Path()) {
	case "/probe/echo":
		fmt.Fprintf(fctx, "%s %s", fctx.Method(), fctx.RequestURI())
	case "/probe/headers":
		for _, v := range fctx.Request.Header.PeekAll("X-Probe") {
			fctx.Response.Header.Add("X-Probe-Echo", string(v))
		}
		fctx.SetBodyString("ok")
	case "/probe/body":
		_, _ = fctx.Write(fctx.PostBody())
	case "/probe/stream":
		chunks, _ := strconv.Atoi(string(fctx.QueryArgs().Peek("chunks")))
		size, _ := strconv.Atoi(string(fctx.QueryArgs().Peek("size")))
		fctx.Response.SetBodyStreamWriter(func(w *bufio.Writer) {
			for i := range chunks {
				_, _ = w.Write(bridge.StreamChunk(i, size))
				_ = w.Flush()
			}
		})
	default:
		fctx.NotFound()
	}
}

func TestFastBridge_Contract(t *testing.T) {
	bridge.RunBridgeContract(t, func() bridge.Bridge {
		return fastbridge.New(probeHandler)
	})
}

func TestFastBridge_LegacyStatusAndHeaders(t *testing.T) {
	b := fastbridge.New(func(fctx *fasthttp.RequestCtx) {
		fctx.SetStatusCode(http.StatusTeapot)
		fctx.Response.Header.Set("X-Legacy", "fiber-era")
		fctx.Response.Header.Add("Set-Cookie", "a=1")
		fctx.Response.Header.Add("Set-Cookie", "b=2")
		fctx.SetBodyString("short and stout")
	})

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", rec.Code)
	}
	if rec.Header().Get("X-Legacy") != "fiber-era" {
		t.Errorf("custom header lost: %v", rec.Header())
	}
	if cookies := rec.Header().Values("Set-Cookie"); len(cookies) != 2 || cookies[0] != "a=1" || cookies[1] != "b=2" {
		t.Errorf("Set-Cookie multiplicity broken: %v", cookies)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body corrupted: %q", rec.Body.String())
	}
}

func TestFastBridge_HostAndRemoteAddr(t *testing.T) {
	b := fastbridge.New(func(fctx *fasthttp.RequestCtx) {
		fmt.Fprintf(fctx, "%s|%s", fctx.Host(), fctx.RemoteAddr())
	})

	req := httptest.NewRequest(http.MethodGet, "http://legacy.example.com/whoami", nil)
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "legacy.example.com|192.0.2.1:1234" {
		t.Errorf("caller identity not forwarded, got %q", got)
	}
}

func TestFastBridge_CtxUsableAsContext(t *testing.T) {
	b := fastbridge.New(func(fctx *fasthttp.RequestCtx) {
		// Legacy handlers commonly hand the ctx straight to database or HTTP
		// clients as a context.Context; none of those methods may blow up.
		select {
		case <-fctx.Done():
			fctx.SetStatusCode(http.StatusInternalServerError)
			return
		default:
		}
		if err := fctx.Err(); err != nil {
			fctx.SetStatusCode(http.StatusInternalServerError)
			return
		}
		_, _ = fctx.Deadline()
		_ = fctx.Value("anything")
		fctx.SetBodyString("alive")
	})

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ctx", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("context methods broke the call, status %d", rec.Code)
	}
	if rec.Body.String() != "alive" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestFastBridge_HopByHopHeadersStripped(t *testing.T) {
	b := fastbridge.New(func(fctx *fasthttp.RequestCtx) {
		if len(fctx.Request.Header.Peek("Te")) != 0 {
			fctx.SetStatusCode(http.StatusBadRequest)
			return
		}
		fctx.Response.Header.Set("Upgrade", "h2c")
		fctx.Response.Header.Set("X-Kept", "yes")
		fctx.SetBodyString("ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/headers", nil)
	req.Header.Set("Te", "trailers")
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("request-side hop header leaked through, status %d", rec.Code)
	}
	if rec.Header().Get("Upgrade") != "" {
		t.Error("response-side hop header leaked through")
	}
	if rec.Header().Get("X-Kept") != "yes" {
		t.Error("ordinary header was over-stripped")
	}
}

func TestFastBridge_PanicIsAdaptationFailure(t *testing.T) {
	b := fastbridge.New(func(_ *fasthttp.RequestCtx) {
		panic("legacy handler exploded")
	})

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 adaptation failure, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "adaptation failure") {
		t.Errorf("unexpected failure body: %q", rec.Body.String())
	}
}

// silentWriter fails the test if anything is written through it.
type silentWriter struct {
	t      *testing.T
	header http.Header
}

func (s *silentWriter) Header() http.Header { return s.header }

func (s *silentWriter) WriteHeader(code int) {
	s.t.Errorf("cancelled call produced a response with status %d", code)
}

func (s *silentWriter) Write(p []byte) (int, error) {
	s.t.Errorf("cancelled call produced %d body bytes", len(p))
	return len(p), nil
}

func TestFastBridge_CancellationPropagates(t *testing.T) {
	handlerDone := make(chan error, 1)
	b := fastbridge.New(func(fctx *fasthttp.RequestCtx) {
		_, err := io.Copy(io.Discard, fctx.Request.BodyStream())
		handlerDone <- err
	})

	pr, pw := io.Pipe()
	req := httptest.NewRequest(http.MethodPost, "/probe/consume", pr)
	req.ContentLength = -1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req = req.WithContext(ctx)

	served := make(chan struct{})
	go func() {
		defer close(served)
		b.ServeHTTP(&silentWriter{t: t, header: make(http.Header)}, req)
	}()

	// The pipe write only returns once the legacy handler has consumed it,
	// so the handler is provably mid-flight when we cancel.
	if _, err := pw.Write([]byte("first chunk")); err != nil {
		t.Fatalf("priming write failed: %v", err)
	}
	cancel()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeHTTP did not return after cancellation")
	}

	// Unblock the handler's pending read; the next read must observe the
	// cancellation instead of receiving more bytes.
	go func() { _, _ = pw.Write([]byte("late chunk")); _ = pw.Close() }()

	select {
	case err := <-handlerDone:
		if err == nil {
			t.Error("legacy handler drained the body to EOF despite cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("legacy handler kept running unobserved after cancellation")
	}
}
