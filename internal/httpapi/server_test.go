package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const minimalProjectJSON = `{
	"_mainLocale": {"_code": "en"},
	"_locale": "en",
	"_flowGroups": [{"_id": "fg1", "_flowIds": ["f1"]}],
	"_flows": [{
		"_id": "f1",
		"_nodes": [
			{"_id": "start", "_type": "Start", "_connections": [{"_to": "t1"}]},
			{"_id": "t1", "_type": "Text", "_elements": [
				{"_id": "e1", "_localizedContents": [{"_localeCode": "en", "_text": "hello"}]}
			]}
		]
	}]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(nil, nil)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// TestServer_SessionLifecycle drives create -> next -> text through the
// HTTP surface end to end.
func TestServer_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/sessions", map[string]any{
		"project": json.RawMessage(minimalProjectJSON),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("expected a non-empty session_id")
	}

	rec = doRequest(t, s, http.MethodPost, "/sessions/"+created.SessionID+"/next", map[string]any{})
	if rec.Code != http.StatusOK {
		t.Fatalf("next: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var next struct {
		Kind   string `json:"kind"`
		NodeID string `json:"node_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &next); err != nil {
		t.Fatalf("unmarshal next response: %v", err)
	}
	if next.Kind != "emitted" || next.NodeID != "t1" {
		t.Fatalf("next response = %+v, want emitted t1", next)
	}

	rec = doRequest(t, s, http.MethodGet, "/sessions/"+created.SessionID+"/text?element_id=e1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("text: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var text struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &text); err != nil {
		t.Fatalf("unmarshal text response: %v", err)
	}
	if text.Text != "hello" {
		t.Errorf("text = %q, want %q", text.Text, "hello")
	}
}

// TestServer_UnknownSessionReturns404 checks the session-lookup error path.
func TestServer_UnknownSessionReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/sessions/does-not-exist/text", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestServer_CreateSessionRejectsMissingProject checks the validator path
// (empty project body).
func TestServer_CreateSessionRejectsMissingProject(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/sessions", map[string]any{"flow": "f1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body=%s", rec.Code, rec.Body.String())
	}
}
