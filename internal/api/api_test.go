package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/jsonvault/internal/bridge"
	"github.com/starford/jsonvault/internal/docservice"
	"github.com/starford/jsonvault/internal/models"
	"github.com/starford/jsonvault/internal/storage"
	"github.com/starford/jsonvault/internal/testutil"
)

// testEnv sets up temp roots, a SQLite catalog, the service, and a router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*docservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithRoots(t, authToken, nil)
	return svc, router
}

func testEnvWithRoots(t *testing.T, authToken string, sseHandler http.Handler) (*docservice.Service, http.Handler, storage.Roots) {
	t.Helper()
	store, roots := testutil.TestStore(t)
	db := testutil.TestDB(t)
	svc := docservice.NewService(store, docservice.WithCatalog(db), docservice.WithLogger(testutil.DiscardLogger()))
	d := bridge.New(svc, testutil.DiscardLogger())
	router := NewRouter(svc, d, authToken != "", authToken, sseHandler)
	return svc, router, roots
}

func do(t *testing.T, router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPutAndGetDocument(t *testing.T) {
	_, router := testEnv(t, "")

	payload := []byte(`{"title":"Servers","list":[1,2]}`)
	w := do(t, router, http.MethodPut, "/documents/private/servers.json", payload)
	if w.Code != http.StatusNoContent {
		t.Fatalf("put status = %d, body = %s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("put should return an ETag")
	}

	w = do(t, router, http.MethodGet, "/documents/private/servers.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Errorf("body = %q, want %q", w.Body.String(), payload)
	}
	if got := w.Header().Get("ETag"); got != etag {
		t.Errorf("ETag = %q, want %q", got, etag)
	}
}

func TestGetNotModified(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/documents/synced/a.json", []byte(`{}`))
	etag := w.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/documents/synced/a.json", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", w.Code)
	}
}

func TestTierAliases(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/documents/cloud/a.json", []byte(`{}`))

	w := do(t, router, http.MethodGet, "/documents/synced/a.json", nil)
	if w.Code != http.StatusOK {
		t.Errorf("cloud alias not resolved to synced: %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/documents/private/a.json", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("private tier leaked synced document: %d", w.Code)
	}
}

func TestListDocuments(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/documents/private", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var resp DocumentListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Documents == nil || len(resp.Documents) != 0 {
		t.Errorf("empty tier = %v, want []", resp.Documents)
	}

	for _, name := range []string{"b.json", "a.json", "c.txt"} {
		do(t, router, http.MethodPut, "/documents/private/"+name, []byte(`{}`))
	}
	w = do(t, router, http.MethodGet, "/documents/private?ext=.json", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if strings.Join(resp.Documents, ",") != "a.json,b.json" {
		t.Errorf("documents = %v", resp.Documents)
	}
}

func TestDeleteDocument(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/documents/synced/del.json", []byte(`{}`))

	w := do(t, router, http.MethodDelete, "/documents/synced/del.json", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/documents/synced/del.json", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestWipeTier(t *testing.T) {
	_, router, roots := testEnvWithRoots(t, "", nil)
	do(t, router, http.MethodPut, "/documents/synced/keep.json", []byte(`{}`))
	do(t, router, http.MethodPut, "/documents/private/drop.json", []byte(`{}`))

	w := do(t, router, http.MethodDelete, "/documents/private", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("wipe status = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(roots.Private, "drop.json")); !os.IsNotExist(err) {
		t.Error("private document survived wipe")
	}
	if _, err := os.Stat(filepath.Join(roots.Synced, "keep.json")); err != nil {
		t.Error("synced document removed by private wipe")
	}
}

func TestStatusMapping(t *testing.T) {
	_, router := testEnv(t, "")

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"missing document", http.MethodGet, "/documents/private/nope.json", http.StatusNotFound},
		{"bad tier", http.MethodGet, "/documents/shared/a.json", http.StatusBadRequest},
		{"encoded slash", http.MethodGet, "/documents/private/..%2Fescape.json", http.StatusBadRequest},
		{"dot dot", http.MethodPut, "/documents/private/..", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.method == http.MethodPut {
				body = []byte(`{}`)
			}
			w := do(t, router, tt.method, tt.target, body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestPercentEncodedNamesDecodedOnce(t *testing.T) {
	svc, router := testEnv(t, "")

	tests := []struct {
		target string
		name   string
	}{
		{"/documents/private/50%2541.json", "50%41.json"},
		{"/documents/private/a%20b.json", "a b.json"},
	}
	for _, tt := range tests {
		if w := do(t, router, http.MethodPut, tt.target, []byte(`{}`)); w.Code != http.StatusNoContent {
			t.Fatalf("put %s: status = %d, body = %s", tt.target, w.Code, w.Body.String())
		}
		if w := do(t, router, http.MethodGet, tt.target, nil); w.Code != http.StatusOK {
			t.Errorf("get %s: status = %d", tt.target, w.Code)
		}
	}

	names, err := svc.List(context.Background(), models.Private, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"50%41.json", "a b.json"}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Errorf("stored names = %q, want %q", names, want)
	}
}

func TestSyncedUnavailable(t *testing.T) {
	store, err := storage.NewStore(storage.Roots{Private: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	svc := docservice.NewService(store)
	router := NewRouter(svc, bridge.New(svc, testutil.DiscardLogger()), false, "", nil)

	w := do(t, router, http.MethodGet, "/documents/synced", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	w = do(t, router, http.MethodPost, "/bridge/listJsonFiles", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("bridge status = %d, want 503", w.Code)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/documents/synced/small.json", []byte(`{"title":"Small"}`))
	do(t, router, http.MethodPut, "/documents/synced/large.json", []byte(`{"title":"Large","pad":"xxxxxxxxxxxxxxxx"}`))

	w := do(t, router, http.MethodGet, "/catalog/synced?sort=size&limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("catalog status = %d", w.Code)
	}
	var resp CatalogResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].Name != "large.json" {
		t.Errorf("documents = %+v", resp.Documents)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/documents/synced/servers.json", []byte(`{"host":"demo.opennms.org"}`))
	do(t, router, http.MethodPut, "/documents/private/creds.json", []byte(`{"host":"demo.opennms.org"}`))

	w := do(t, router, http.MethodGet, "/search?q=opennms&tier=private", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Name != "creds.json" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBridgeEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/bridge/setPrivateJsonFileContents", []byte(`["a.json", {"x": 1}]`))
	if w.Code != http.StatusOK {
		t.Fatalf("set status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/bridge/onmsGetPrivateJsonFileContents", []byte(`["a.json"]`))
	var res struct {
		Success  bool            `json:"success"`
		Contents json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	var compact bytes.Buffer
	_ = json.Compact(&compact, res.Contents)
	if !res.Success || compact.String() != `{"x":1}` {
		t.Errorf("get result = %s", w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/bridge/getPrivateJsonFileContents", []byte(`["missing.json"]`))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) || !strings.Contains(w.Body.String(), "Unable to read file.") {
		t.Errorf("missing body = %s", w.Body.String())
	}
}

func TestBridgeBadRequests(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/bridge/doSomething", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown command = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/bridge/listJsonFiles", []byte(`{"not":"array"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("object body = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/documents/private", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/documents/private", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/documents/private", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	_, router := testEnv(t, "")
	handler := CORSMiddleware([]string{"https://app.example"})(router)

	req := httptest.NewRequest(http.MethodOptions, "/documents/private", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents/private", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got %q", got)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithRoots(t, "secret", sseStub())

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithRoots(t, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
