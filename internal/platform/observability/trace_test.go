package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/westroxburyframing/ops-api/internal/platform/requestctx"
)

const testTraceID = "105445aa7843bc8bf206b12000100000"

func TestTraceMiddlewarePropagatesCloudTraceHeader(t *testing.T) {
	var got requestctx.TraceInfo
	var found bool
	handler := TraceMiddleware("demo-project")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1/activity", nil)
	req.Header.Set("X-Cloud-Trace-Context", testTraceID+"/00f067aa0ba902b7;o=1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !found {
		t.Fatal("expected trace info on request context")
	}
	if got.TraceID != testTraceID {
		t.Fatalf("expected incoming trace id to carry through, got %s", got.TraceID)
	}
	if !got.Sampled {
		t.Fatal("expected sampled flag from o=1")
	}
	if got.ProjectID != "demo-project" {
		t.Fatalf("unexpected project id %s", got.ProjectID)
	}

	header := rr.Header().Get("X-Cloud-Trace-Context")
	if header != testTraceID+"/"+got.SpanID+";o=1" {
		t.Fatalf("unexpected response trace header %q", header)
	}
}

func TestParseCloudTraceContextDecimalSpanID(t *testing.T) {
	info, spanCtx, ok := parseCloudTraceContext(testTraceID + "/67667974448284343;o=1")
	if !ok {
		t.Fatal("expected decimal span id to parse")
	}
	if info.TraceID != testTraceID {
		t.Fatalf("unexpected trace id %s", info.TraceID)
	}
	if !spanCtx.IsRemote() || !spanCtx.IsSampled() {
		t.Fatalf("expected remote sampled span context, got %+v", spanCtx)
	}
}

func TestParseCloudTraceContextRejectsMalformedHeaders(t *testing.T) {
	cases := []string{
		"",
		"not-a-trace",
		"deadbeef/123",
		testTraceID,
		testTraceID + "/",
	}
	for _, header := range cases {
		if _, _, ok := parseCloudTraceContext(header); ok {
			t.Fatalf("expected %q to be rejected", header)
		}
	}
}

func TestSanitizeActorStripsControlCharacters(t *testing.T) {
	if got := SanitizeActor("casey\x00\x1b[31m"); got != "casey[31m" {
		t.Fatalf("unexpected sanitized actor %q", got)
	}
	if got := SanitizeActor(""); got != "" {
		t.Fatalf("expected empty actor to stay empty, got %q", got)
	}
}
