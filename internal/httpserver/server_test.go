package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arcfield/geoimport-go/internal/config"
	"github.com/arcfield/geoimport-go/internal/job"
	"github.com/arcfield/geoimport-go/internal/mapper"
	"github.com/arcfield/geoimport-go/internal/progress"
)

type stubLoader struct{}

func (stubLoader) InsertBatch(ctx context.Context, rows []*mapper.TargetRow) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids, nil
}

func (stubLoader) LinkRegions(ctx context.Context, category mapper.Category, jobID string) (int64, error) {
	return 0, nil
}

func (stubLoader) LinkCountries(ctx context.Context, category mapper.Category, jobID string) (int64, error) {
	return 0, nil
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	orch := job.NewOrchestrator(config.Default(), stubLoader{}, progress.NewBus())
	srv, err := NewHTTPServer(zap.NewNop(), orch, nil)
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func (srv *HTTPServer) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	srv.ginRouter.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", w.Code)
	}
}

func TestStartImportValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing source", `{"category":"point-of-interest"}`},
		{"unknown category", `{"source":"/tmp/x.geojson","category":"castles"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(http.MethodPost, "/api/imports", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("POST /api/imports = %d, want 400", w.Code)
			}
		})
	}
}

func TestUnknownImport(t *testing.T) {
	srv := newTestServer(t)

	if w := srv.do(http.MethodGet, "/api/imports/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("GET unknown = %d, want 404", w.Code)
	}
	if w := srv.do(http.MethodDelete, "/api/imports/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("DELETE unknown = %d, want 404", w.Code)
	}
}

func TestImportLifecycle(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":1,"geometry":{"type":"Point","coordinates":[1,1]},"properties":{"name":"A","amenity":"cafe"}},
		{"type":"Feature","id":2,"geometry":{"type":"Point","coordinates":[2,2]},"properties":{"name":"B","amenity":"bar"}},
		{"type":"Feature","id":3,"geometry":{"type":"Point","coordinates":[3,3]},"properties":{"name":"C","amenity":"pub"}}
	]}`
	path := filepath.Join(t.TempDir(), "small.geojson")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t)

	body := fmt.Sprintf(`{"source":%q,"category":"point-of-interest","owner_id":"u1"}`, path)
	w := srv.do(http.MethodPost, "/api/imports", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST /api/imports = %d, body %s", w.Code, w.Body.String())
	}

	var resp importResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Job.ID == "" {
		t.Fatal("accepted import has no job id")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w = srv.do(http.MethodGet, "/api/imports/"+resp.Job.ID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("GET import = %d", w.Code)
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Job.Status == job.StatusCompleted {
			break
		}
		if resp.Job.Status == job.StatusFailed {
			t.Fatalf("import failed: %s", resp.Job.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("import stuck in status %s", resp.Job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if resp.Job.Processed != 3 {
		t.Errorf("processed = %d, want 3", resp.Job.Processed)
	}
	if resp.Job.Batches != 1 {
		t.Errorf("batches = %d, want 1", resp.Job.Batches)
	}

	w = srv.do(http.MethodGet, "/api/imports", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/imports = %d", w.Code)
	}
	var list listImportsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Jobs) != 1 {
		t.Errorf("listed %d jobs, want 1", len(list.Jobs))
	}

	// Cancelling a finished import is rejected.
	w = srv.do(http.MethodDelete, "/api/imports/"+resp.Job.ID, "")
	if w.Code != http.StatusConflict {
		t.Errorf("DELETE finished import = %d, want 409", w.Code)
	}

	w = srv.do(http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/status = %d", w.Code)
	}
	var status statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Imports.Completed != 1 {
		t.Errorf("status completed = %d, want 1", status.Imports.Completed)
	}
	if status.System != nil {
		t.Errorf("status system = %+v, want none without a collector", status.System)
	}
}
