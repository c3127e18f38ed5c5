package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/index"
	"github.com/starford/presetcat/internal/presetservice"
	"github.com/starford/presetcat/internal/testutil"
)

// testEnv sets up a temp presets root, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode; a non-empty one means token mode.
func testEnv(t *testing.T, authToken string) (string, http.Handler) {
	t.Helper()
	root, _, router := testEnvFull(t, authToken != "", authToken, nil)
	return root, router
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (string, *presetservice.Service, http.Handler) {
	t.Helper()

	root, store := testutil.TestLibrary(t)
	db, err := index.Open(filepath.Join(t.TempDir(), "presetcat-api-test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(store, engine.WithLogger(logger))
	svc := presetservice.NewService(eng, store, db, presetservice.WithLogger(logger))
	router := NewRouter(svc, authEnabled, authToken, sseHandler)
	return root, svc, router
}

// seed writes a small library and scans it through the API.
func seed(t *testing.T, root string, router http.Handler) {
	t.Helper()
	testutil.WriteFile(t, root, "Portraits/Soft/a.xmp", testutil.Preset("Old", testutil.PresetName))
	testutil.WriteFile(t, root, "Portraits/b.xmp", testutil.Preset("Portraits", testutil.CanonicalGroup("Soft")+testutil.PresetName))
	testutil.WriteFile(t, root, "Landscape/c.xmp", testutil.Preset("Landscape", testutil.PresetName))
	w := do(t, router, http.MethodPost, "/scan", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("scan status = %d, body = %s", w.Code, w.Body.String())
	}
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestScanAndListPresets(t *testing.T) {
	root, router := testEnv(t, "")
	seed(t, root, router)

	w := do(t, router, http.MethodGet, "/presets", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	list := decode[PresetListResponse](t, w)
	if list.Total != 3 || len(list.Presets) != 3 {
		t.Fatalf("total = %d, len = %d, want 3", list.Total, len(list.Presets))
	}

	w = do(t, router, http.MethodGet, "/presets?cluster=Portraits", nil)
	list = decode[PresetListResponse](t, w)
	if list.Total != 1 || list.Presets[0].DisplayName != "Portraits/b.xmp" {
		t.Errorf("filtered = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/presets?limit=1&offset=1", nil)
	list = decode[PresetListResponse](t, w)
	if list.Total != 3 || len(list.Presets) != 1 {
		t.Errorf("paged total = %d, len = %d", list.Total, len(list.Presets))
	}
}

func TestGetPreset(t *testing.T) {
	root, router := testEnv(t, "")
	seed(t, root, router)

	w := do(t, router, http.MethodGet, "/presets/Portraits/b.xmp", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	p := decode[PresetDetail](t, w)
	if p.Cluster != "Portraits" || p.Group != "Soft" {
		t.Errorf("cluster/group = %q/%q", p.Cluster, p.Group)
	}
	if !strings.Contains(p.Content, "crs:Cluster") {
		t.Error("content missing")
	}

	// Encoded slashes resolve the same preset.
	w = do(t, router, http.MethodGet, "/presets/Portraits%2Fb.xmp", nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded get status = %d", w.Code)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/presets/nope.xmp", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing preset = %d, want 404", w.Code)
	}
}

func TestGetPreset_OutsideRoot(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/presets/..%2Fx.xmp", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("escaping path = %d, want 400, body = %s", w.Code, w.Body.String())
	}
}

func TestSetClusterWritesFiles(t *testing.T) {
	root, router := testEnv(t, "")
	seed(t, root, router)

	w := do(t, router, http.MethodPost, "/cluster", EditRequest{Paths: []string{"Portraits"}, Value: "Faces"})
	if w.Code != http.StatusOK {
		t.Fatalf("set cluster status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[BatchResult](t, w)
	if res.Succeeded != 2 || res.Changed != 2 {
		t.Errorf("succeeded = %d, changed = %d, want 2/2", res.Succeeded, res.Changed)
	}
	got := testutil.ReadFile(t, filepath.Join(root, "Portraits", "Soft", "a.xmp"))
	if !strings.Contains(got, `crs:Cluster="Faces"`) {
		t.Errorf("cluster not written:\n%s", got)
	}

	// The catalog follows the edit.
	w = do(t, router, http.MethodGet, "/presets?cluster=Faces", nil)
	if list := decode[PresetListResponse](t, w); list.Total != 2 {
		t.Errorf("catalog total for Faces = %d, want 2", list.Total)
	}
}

func TestSetGroupDryRun(t *testing.T) {
	root, router := testEnv(t, "")
	seed(t, root, router)
	path := filepath.Join(root, "Landscape", "c.xmp")
	before := testutil.ReadFile(t, path)

	w := do(t, router, http.MethodPost, "/group", EditRequest{Paths: []string{"Landscape/c.xmp"}, Value: "Mountains", DryRun: true})
	if w.Code != http.StatusOK {
		t.Fatalf("dry run status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[BatchResult](t, w)
	if !res.DryRun || len(res.Outcomes) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Outcomes[0].Diff, "+     <rdf:li xml:lang=\"x-default\">Mountains</rdf:li>") {
		t.Errorf("diff = %q", res.Outcomes[0].Diff)
	}
	if testutil.ReadFile(t, path) != before {
		t.Error("dry run modified the file")
	}
}

func TestEditValidation(t *testing.T) {
	root, router := testEnv(t, "")
	seed(t, root, router)

	cases := []struct {
		name   string
		target string
		body   any
	}{
		{"missing paths", "/cluster", EditRequest{Value: "X"}},
		{"blank path", "/group", EditRequest{Paths: []string{""}, Value: "X"}},
		{"invalid value", "/cluster", EditRequest{Paths: []string{"Landscape"}, Value: "<bad>"}},
		{"empty value", "/group", EditRequest{Paths: []string{"Landscape"}, Value: ""}},
		{"fix without paths", "/fix-groups", FixGroupsRequest{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, tc.target, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body = %s", w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/cluster", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
}

func TestFixGroupsEndpoint(t *testing.T) {
	root, router := testEnv(t, "")
	broken := "   <crs:Group>Soft</crs:Group>\n"
	testutil.WriteFile(t, root, "Portraits/Soft/a.xmp", testutil.Preset("Portraits", testutil.PresetName+broken))

	w := do(t, router, http.MethodPost, "/fix-groups", FixGroupsRequest{Paths: []string{"Portraits"}})
	if w.Code != http.StatusOK {
		t.Fatalf("fix status = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decode[BatchResult](t, w); res.Changed != 1 {
		t.Errorf("changed = %d, want 1", res.Changed)
	}
	want := testutil.Preset("Portraits", testutil.CanonicalGroup("Soft")+testutil.PresetName)
	if got := testutil.ReadFile(t, filepath.Join(root, "Portraits", "Soft", "a.xmp")); got != want {
		t.Errorf("repaired file:\n%s\nwant:\n%s", got, want)
	}
}

func TestSmartDetectionFlow(t *testing.T) {
	root, router := testEnv(t, "")
	seed(t, root, router)

	w := do(t, router, http.MethodPost, "/smart-detection", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, body = %s", w.Code, w.Body.String())
	}
	st := decode[SmartState](t, w)
	if !st.Active || len(st.Suggestions) == 0 {
		t.Fatalf("state = %+v", st)
	}

	// Free-text edits are refused while a session is open.
	w = do(t, router, http.MethodPost, "/cluster", EditRequest{Paths: []string{"Landscape"}, Value: "X"})
	if w.Code != http.StatusConflict {
		t.Errorf("manual edit during session = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPost, "/smart-detection/apply", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("apply status = %d, body = %s", w.Code, w.Body.String())
	}
	got := testutil.ReadFile(t, filepath.Join(root, "Portraits", "Soft", "a.xmp"))
	if !strings.Contains(got, `crs:Cluster="Portraits"`) || !strings.Contains(got, ">Soft</rdf:li>") {
		t.Errorf("suggestion not applied:\n%s", got)
	}

	w = do(t, router, http.MethodGet, "/smart-detection", nil)
	if st := decode[SmartState](t, w); st.Active {
		t.Error("session still active after apply")
	}
}

func TestSmartDetection_Inactive(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodDelete, "/smart-detection", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("reset inactive = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodPost, "/smart-detection/apply", ApplyRequest{})
	if w.Code != http.StatusConflict {
		t.Errorf("apply inactive = %d, want 409", w.Code)
	}
}

func TestFacetsAndSearch(t *testing.T) {
	root, router := testEnv(t, "")
	seed(t, root, router)

	w := do(t, router, http.MethodGet, "/facets", nil)
	facets := decode[FacetsResponse](t, w)
	if len(facets.Clusters) != 3 {
		t.Errorf("clusters = %+v", facets.Clusters)
	}

	w = do(t, router, http.MethodGet, "/search?q=Landscape", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	if res := decode[SearchResponse](t, w); len(res.Results) != 1 {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestBackupWithoutDirectory(t *testing.T) {
	root, router := testEnv(t, "")
	seed(t, root, router)

	w := do(t, router, http.MethodPost, "/backup", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("backup without dir = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/presets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context ends.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, _, router := testEnvFull(t, true, "secret", sseStub)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, _, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
