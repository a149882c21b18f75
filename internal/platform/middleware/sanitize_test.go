package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func sanitizeOKHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func newSanitizeEcho() *echo.Echo {
	e := echo.New()
	logger := zerolog.New(os.Stderr).With().Logger()
	e.Use(SanitizeWithLogger(logger))
	e.GET("/*", sanitizeOKHandler)
	e.POST("/*", sanitizeOKHandler)
	return e
}

// assertSanitizeError checks that a blocked request produced the JSON
// error body the middleware emits.
func assertSanitizeError(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Errorf("expected error message in response body, got %v", body)
	}
}

func TestSanitize_PathTraversal_DotDot(t *testing.T) {
	e := newSanitizeEcho()

	req := httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	assertSanitizeError(t, rec)
}

func TestSanitize_PathTraversal_EncodedDotDot(t *testing.T) {
	e := newSanitizeEcho()

	req := httptest.NewRequest(http.MethodGet, "/%2e%2e/%2e%2e/etc/passwd", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	assertSanitizeError(t, rec)
}

func TestSanitize_PathTraversal_DoubleEncoded(t *testing.T) {
	e := newSanitizeEcho()

	req := httptest.NewRequest(http.MethodGet, "/%252e%252e/etc/passwd", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	assertSanitizeError(t, rec)
}

func TestSanitize_NullByte_InPath(t *testing.T) {
	e := newSanitizeEcho()

	req := httptest.NewRequest(http.MethodGet, "/file%00.txt", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSanitize_NullByte_InQueryParam(t *testing.T) {
	e := newSanitizeEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consents?note=%00abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSanitize_HeaderInjection_Newline(t *testing.T) {
	e := newSanitizeEcho()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vitals-readings", nil)
	req.Header.Set("X-Device-Label", "bedside\r\nX-Injected: true")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSanitize_OversizedHeader(t *testing.T) {
	e := newSanitizeEcho()

	big := make([]byte, maxHeaderValueSize+1)
	for i := range big {
		big[i] = 'a'
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vitals-readings", nil)
	req.Header.Set("X-Big", string(big))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSanitize_NormalRequests_PassThrough(t *testing.T) {
	e := newSanitizeEcho()

	paths := []string{
		"/api/v1/vitals-readings",
		"/api/v1/patients/9b2e7a44-11aa-4bfa-9d3c-6a2d4f4a9f01/vitals?window_hours=24",
		"/api/v1/patients/9b2e7a44-11aa-4bfa-9d3c-6a2d4f4a9f01/vitals/trends",
		"/api/v1/triage-assessments?limit=20&offset=40",
		"/health/db",
	}

	for _, p := range paths {
		req := httptest.NewRequest(http.MethodGet, p, nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("path %s: expected 200, got %d; body: %s", p, rec.Code, rec.Body.String())
		}
	}
}

func TestSanitize_SQLInjection_WarnsButPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	e.Use(SanitizeWithLogger(logger))
	e.GET("/*", sanitizeOKHandler)

	tests := []struct {
		name  string
		param string
		value string
	}{
		{"drop", "complaint", "'; DROP TABLE triage_assessment;--"},
		{"union_select", "complaint", "1 UNION SELECT * FROM consent"},
		{"or_1_1", "complaint", "' OR 1=1--"},
	}

	for _, tt := range tests {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/triage-assessments", nil)
		q := req.URL.Query()
		q.Set(tt.param, tt.value)
		req.URL.RawQuery = q.Encode()
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200 (pass-through), got %d", tt.name, rec.Code)
		}
		if !bytes.Contains(buf.Bytes(), []byte("potential SQL injection")) {
			t.Errorf("%s: expected SQL injection warning in logs", tt.name)
		}
	}
}

func TestSanitize_ScriptInjection_Blocked(t *testing.T) {
	e := newSanitizeEcho()

	tests := []struct {
		name  string
		param string
		value string
	}{
		{"script_tag", "complaint", "<script>alert(1)</script>"},
		{"javascript_uri", "url", "javascript:alert(1)"},
		{"event_handler", "val", "onload=alert(1)"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/triage-assessments", nil)
		q := req.URL.Query()
		q.Set(tt.param, tt.value)
		req.URL.RawQuery = q.Encode()
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, rec.Code)
		}
		assertSanitizeError(t, rec)
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"null_bytes", "hello\x00world", "helloworld"},
		{"control_chars", "hello\x01world\x07end", "helloworldend"},
		{"preserves_whitespace_chars", "line1\nline2\ttab", "line1\nline2\ttab"},
		{"trims", "   chest pain   ", "chest pain"},
		{"normal_text", "Severe chest pain, radiating to left arm #2", "Severe chest pain, radiating to left arm #2"},
		{"empty", "", ""},
		{"only_nulls", "\x00\x00", ""},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.input); got != tt.want {
			t.Errorf("%s: SanitizeString(%q) = %q, want %q", tt.name, tt.input, got, tt.want)
		}
	}
}
