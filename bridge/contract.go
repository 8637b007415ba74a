package bridge

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	concurrentCalls = 100
	streamChunks    = 16
	streamChunkSize = 128 * 1024
)

// StreamChunk returns the canonical payload of chunk i for the streaming
// probe route: size bytes, all set to a letter derived from the chunk index.
// Having the pattern be a pure function of the offset lets the suite verify
// a multi-megabyte stream without holding any of it in memory.
func StreamChunk(i, size int) []byte {
	return bytes.Repeat([]byte{byte('a' + i%26)}, size)
}

// RunBridgeContract executes the functional contract every [Bridge] must
// satisfy. The factory must return a fresh bridge whose legacy application
// serves these probe routes:
//
//	ANY  /probe/echo     respond with "<METHOD> <REQUEST-URI>" as the body
//	ANY  /probe/headers  append every value of the request header "X-Probe",
//	                     in order, as the response header "X-Probe-Echo";
//	                     respond "ok"
//	POST /probe/body     respond with the request body, verbatim
//	GET  /probe/stream   respond with streamChunks chunks of streamChunkSize
//	                     bytes each, chunk i as produced by StreamChunk,
//	                     written and flushed one chunk at a time
//
// Requests to unregistered paths must fall through to the legacy framework's
// own not-found handling.
func RunBridgeContract(t *testing.T, factory func() Bridge) {
	t.Run("Method and URI Echo", func(t *testing.T) {
		testMethodURIEcho(t, factory())
	})

	t.Run("Header Multiplicity and Order", func(t *testing.T) {
		testHeaderFidelity(t, factory())
	})

	t.Run("Body Round-trip", func(t *testing.T) {
		testBodyRoundTrip(t, factory())
	})

	t.Run("Streamed Body Relay", func(t *testing.T) {
		testStreamRelay(t, factory())
	})

	t.Run("Concurrent Call Isolation", func(t *testing.T) {
		testConcurrentIsolation(t, factory())
	})

	t.Run("Legacy Status Passthrough", func(t *testing.T) {
		testStatusPassthrough(t, factory())
	})

	t.Run("Engine Exposure", func(t *testing.T) {
		if factory().Engine() == nil {
			t.Error("Engine() must expose the wrapped legacy application")
		}
	})
}

func testMethodURIEcho(t *testing.T, b Bridge) {
	methods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodPatch,
	}

	for _, method := range methods {
		req := httptest.NewRequest(method, "/probe/echo?q=42&lang=go", nil)
		rec := httptest.NewRecorder()
		b.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", method, rec.Code)
		}
		expected := method + " /probe/echo?q=42&lang=go"
		if rec.Body.String() != expected {
			t.Errorf("expected body %q, got %q", expected, rec.Body.String())
		}
	}
}

func testHeaderFidelity(t *testing.T, b Bridge) {
	sent := []string{"alpha", "", "gamma", "alpha"}

	req := httptest.NewRequest(http.MethodGet, "/probe/headers", nil)
	for _, v := range sent {
		req.Header.Add("X-Probe", v)
	}
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, req)

	got := rec.Header().Values("X-Probe-Echo")
	if len(got) != len(sent) {
		t.Fatalf("header multiplicity lost: sent %d values, got %d (%v)", len(sent), len(got), got)
	}
	for i := range sent {
		if got[i] != sent[i] {
			t.Errorf("header order broken at %d: expected %q, got %q", i, sent[i], got[i])
		}
	}
}

func testBodyRoundTrip(t *testing.T, b Bridge) {
	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	req := httptest.NewRequest(http.MethodPost, "/probe/body", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body corrupted in transit: sent %d bytes, got %d back", len(payload), rec.Body.Len())
	}
}

func testStreamRelay(t *testing.T, b Bridge) {
	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/probe/stream?chunks=%d&size=%d", streamChunks, streamChunkSize), nil)
	sink := newStreamSink(streamChunkSize)
	b.ServeHTTP(sink, req)

	total := int64(streamChunks * streamChunkSize)
	if sink.err != nil {
		t.Fatalf("stream corrupted: %v", sink.err)
	}
	if sink.received != total {
		t.Fatalf("expected %d streamed bytes, got %d", total, sink.received)
	}
	if sink.writes < 2 {
		t.Error("entire stream arrived in a single write; body was buffered, not relayed")
	}
	if sink.maxWrite >= total {
		t.Errorf("a single write carried the whole %d-byte stream", total)
	}
}

func testConcurrentIsolation(t *testing.T, b Bridge) {
	var wg sync.WaitGroup
	failures := make(chan string, concurrentCalls)

	for i := range concurrentCalls {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			payload := fmt.Sprintf("call-%03d:%s", id, strings.Repeat("x", id))

			req := httptest.NewRequest(http.MethodPost, "/probe/body", strings.NewReader(payload))
			rec := httptest.NewRecorder()
			b.ServeHTTP(rec, req)

			if rec.Body.String() != payload {
				failures <- fmt.Sprintf("call %d received a foreign response: %q", id, rec.Body.String())
			}
		}(i)
	}

	wg.Wait()
	close(failures)
	for f := range failures {
		t.Error(f)
	}
}

func testStatusPassthrough(t *testing.T, b Bridge) {
	req := httptest.NewRequest(http.MethodGet, "/probe/definitely-not-registered", nil)
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, req)

	// The legacy framework's own 404 is a valid response, not a bridge error.
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected the legacy 404 to pass through, got %d", rec.Code)
	}
}

// streamSink is an http.ResponseWriter that verifies the canonical stream
// pattern incrementally, byte position by byte position, without retaining
// the body. It records write granularity so the suite can tell relaying
// apart from buffering.
type streamSink struct {
	header    http.Header
	status    int
	chunkSize int
	received  int64
	writes    int
	maxWrite  int64
	err       error
}

func newStreamSink(chunkSize int) *streamSink {
	return &streamSink{header: make(http.Header), chunkSize: chunkSize}
}

func (s *streamSink) Header() http.Header  { return s.header }
func (s *streamSink) WriteHeader(code int) { s.status = code }
func (s *streamSink) Flush()               {}

func (s *streamSink) Write(p []byte) (int, error) {
	for _, c := range p {
		expected := byte('a' + int(s.received/int64(s.chunkSize))%26)
		if c != expected && s.err == nil {
			s.err = fmt.Errorf("byte %d: expected %q, got %q", s.received, expected, c)
		}
		s.received++
	}
	s.writes++
	if int64(len(p)) > s.maxWrite {
		s.maxWrite = int64(len(p))
	}
	return len(p), nil
}
