package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ticketbridge/api/internal/platform/httpx"
	"github.com/ticketbridge/api/internal/platform/requestctx"
)

const sampleTraceID = "105445aa7843bc8bf206b12000100012"

func TestTraceMiddlewarePropagatesCloudTraceHeader(t *testing.T) {
	var captured requestctx.TraceInfo
	var found bool

	handler := TraceMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, found = requestctx.Trace(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ticketspice-webhook", nil)
	req.Header.Set("X-Cloud-Trace-Context", sampleTraceID+"/123;o=1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !found {
		t.Fatalf("expected trace info on the request context")
	}
	if captured.TraceID != sampleTraceID {
		t.Fatalf("unexpected trace id: %q", captured.TraceID)
	}
	if !captured.Sampled {
		t.Fatalf("expected sampled flag from o=1")
	}
	echoed := rec.Header().Get("X-Cloud-Trace-Context")
	if !strings.HasPrefix(echoed, sampleTraceID+"/") || !strings.HasSuffix(echoed, ";o=1") {
		t.Fatalf("unexpected echoed trace header: %q", echoed)
	}
}

func TestTraceMiddlewareTraceIDReachesErrorEnvelope(t *testing.T) {
	handler := TraceMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("missing_data", "payload has no data section", http.StatusBadRequest))
	}))

	req := httptest.NewRequest(http.MethodPost, "/ticketspice-webhook", nil)
	req.Header.Set("X-Cloud-Trace-Context", sampleTraceID+"/7b;o=0")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload["trace_id"] != sampleTraceID {
		t.Fatalf("expected trace_id %q in error envelope, got %v", sampleTraceID, payload["trace_id"])
	}
}

func TestParseCloudTraceContext(t *testing.T) {
	cases := []struct {
		name   string
		header string
		ok     bool
	}{
		{name: "hex span id", header: sampleTraceID + "/00f067aa0ba902b7;o=1", ok: true},
		{name: "decimal span id", header: sampleTraceID + "/123", ok: true},
		{name: "empty", header: "", ok: false},
		{name: "no span part", header: sampleTraceID, ok: false},
		{name: "short trace id", header: "abc123/1;o=1", ok: false},
		{name: "zero span id", header: sampleTraceID + "/0", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, _, ok := parseCloudTraceContext(tc.header)
			if ok != tc.ok {
				t.Fatalf("parse %q: ok=%v, want %v", tc.header, ok, tc.ok)
			}
			if ok && info.TraceID != sampleTraceID {
				t.Fatalf("unexpected trace id: %q", info.TraceID)
			}
		})
	}
}
