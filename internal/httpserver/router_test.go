package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"progresshub/internal/blob"
	"progresshub/internal/handler"
	"progresshub/internal/membership"
	"progresshub/internal/progress"
	"progresshub/internal/repository/memory"
	"progresshub/internal/service"
	"progresshub/pkg/trace"
	"progresshub/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	assetDir string
}

func newTestServer(t *testing.T, ready ...ReadinessCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	mem := memory.New()
	images, err := blob.NewLocal(t.TempDir(), log)
	if err != nil {
		t.Fatalf("local blob: %v", err)
	}
	engine := progress.NewEngine(mem.Projects(), mem.Tasks(), mem.SubTasks(), nil, log)
	members := membership.NewMaintainer(mem.Projects(), mem.Tasks(), log)

	projects := service.NewProjectService(mem.Projects(), mem.Tasks(), mem.SubTasks(), images, blob.URLBuilder{Base: "http://assets.test"}, log)
	tasks := service.NewTaskService(mem.Tasks(), mem.SubTasks(), mem.Projects(), members, engine, log)
	subTasks := service.NewSubTaskService(mem.SubTasks(), mem.Tasks(), mem.Projects(), members, engine, log)

	r := NewRouter(Deps{
		Projects:     handler.NewProjectHandler(projects, tasks, subTasks, 1<<20, log),
		Tasks:        handler.NewTaskHandler(tasks, subTasks, log),
		SubTasks:     handler.NewSubTaskHandler(subTasks, log),
		Members:      projects,
		TaskLocator:  tasks,
		SubTaskOwner: subTasks,
		JWTSecret:    testSecret,
		AssetDir:     images.Dir(),
		Ready:        ready,
		Logger:       log,
	})
	return &testServer{t: t, router: r, assetDir: images.Dir()}
}

func (s *testServer) token(userID string) string {
	s.t.Helper()
	tok, err := util.GenerateJWT(userID, testSecret, time.Hour)
	if err != nil {
		s.t.Fatalf("token: %v", err)
	}
	return tok
}

func (s *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(user))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

type idProgress struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
	Image    string `json:"image"`
	ImageURL string `json:"imageUrl"`
}

func (s *testServer) create(path, user string, body any) idProgress {
	s.t.Helper()
	w := s.do(http.MethodPost, path, user, body)
	if w.Code != http.StatusCreated {
		s.t.Fatalf("POST %s = %d %s", path, w.Code, w.Body.String())
	}
	return decode[idProgress](s.t, w)
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, ReadinessCheck{Name: "store", Check: func(context.Context) error {
		return errors.New("down")
	}})

	if w := s.do(http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
	w := s.do(http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "store_not_ready") {
		t.Fatalf("readyz = %d %s", w.Code, w.Body.String())
	}

	ok := newTestServer(t, ReadinessCheck{Name: "store", Check: func(context.Context) error { return nil }})
	if w := ok.do(http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz = %d", w.Code)
	}
	if w := ok.do(http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(http.MethodGet, "/projects", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d", w.Code)
	}
}

func TestTraceHeader(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "trace-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if got := w.Header().Get(trace.HeaderName); got != "trace-123" {
		t.Fatalf("trace header = %q", got)
	}

	w = s.do(http.MethodGet, "/healthz", "", nil)
	if w.Header().Get(trace.HeaderName) == "" {
		t.Fatalf("expected generated trace id")
	}
}

func TestProgressFlowsThroughHTTP(t *testing.T) {
	s := newTestServer(t)

	project := s.create("/projects", "alice", map[string]any{"name": "Launch"})
	task := s.create("/tasks", "alice", map[string]any{"project": project.ID, "name": "Build", "weight": 1})
	a := s.create("/subtasks", "alice", map[string]any{"task": task.ID, "name": "a", "weight": 1})
	s.create("/subtasks", "alice", map[string]any{"task": task.ID, "name": "b", "weight": 3})

	w := s.do(http.MethodPatch, "/subtasks/"+a.ID, "alice", map[string]any{"progress": 100})
	if w.Code != http.StatusOK {
		t.Fatalf("patch subtask = %d %s", w.Code, w.Body.String())
	}

	got := decode[idProgress](t, s.do(http.MethodGet, "/tasks/"+task.ID, "alice", nil))
	if got.Progress != 25 {
		t.Fatalf("task progress = %d, want 25", got.Progress)
	}
	got = decode[idProgress](t, s.do(http.MethodGet, "/projects/"+project.ID, "alice", nil))
	if got.Progress != 25 {
		t.Fatalf("project progress = %d, want 25", got.Progress)
	}

	list := decode[struct {
		Items []struct {
			TaskDocs []struct {
				SubTaskDocs []idProgress `json:"subTaskDocs"`
			} `json:"taskDocs"`
		} `json:"items"`
		Total int `json:"total"`
	}](t, s.do(http.MethodGet, "/projects?depth=2", "alice", nil))
	if list.Total != 1 || len(list.Items[0].TaskDocs) != 1 || len(list.Items[0].TaskDocs[0].SubTaskDocs) != 2 {
		t.Fatalf("depth listing = %+v", list)
	}

	children := decode[struct {
		SubTasks []idProgress `json:"subTasks"`
	}](t, s.do(http.MethodGet, "/tasks/"+task.ID+"/subtasks", "alice", nil))
	if len(children.SubTasks) != 2 {
		t.Fatalf("task subtasks = %d", len(children.SubTasks))
	}

	if w := s.do(http.MethodDelete, "/projects/"+project.ID, "alice", nil); w.Code != http.StatusOK {
		t.Fatalf("delete project = %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/subtasks/"+a.ID, "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("subtask after project delete = %d", w.Code)
	}
}

func TestMembershipGuard(t *testing.T) {
	s := newTestServer(t)
	project := s.create("/projects", "alice", map[string]any{"name": "Private"})
	task := s.create("/tasks", "alice", map[string]any{"project": project.ID, "name": "t"})
	sub := s.create("/subtasks", "alice", map[string]any{"task": task.ID, "name": "s"})

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/projects/" + project.ID, nil},
		{http.MethodDelete, "/projects/" + project.ID, nil},
		{http.MethodGet, "/tasks/" + task.ID, nil},
		{http.MethodPatch, "/tasks/" + task.ID, map[string]any{"weight": 5}},
		{http.MethodGet, "/subtasks/" + sub.ID, nil},
		{http.MethodPost, "/tasks", map[string]any{"project": project.ID, "name": "intruder"}},
		{http.MethodPost, "/subtasks", map[string]any{"task": task.ID, "name": "intruder"}},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			if w := s.do(tc.method, tc.path, "mallory", tc.body); w.Code != http.StatusForbidden {
				t.Fatalf("status = %d %s", w.Code, w.Body.String())
			}
		})
	}

	if w := s.do(http.MethodGet, "/projects/missing", "alice", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown project = %d", w.Code)
	}
	// the owner still sees their data
	if w := s.do(http.MethodGet, "/subtasks/"+sub.ID, "alice", nil); w.Code != http.StatusOK {
		t.Fatalf("owner read = %d", w.Code)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)
	project := s.create("/projects", "alice", map[string]any{"name": "p"})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"empty project name", http.MethodPost, "/projects", map[string]any{"name": ""}, http.StatusBadRequest},
		{"weight out of range", http.MethodPost, "/tasks", map[string]any{"project": project.ID, "name": "t", "weight": 0}, http.StatusBadRequest},
		{"task without project", http.MethodPost, "/tasks", map[string]any{"name": "t"}, http.StatusBadRequest},
		{"subtask without task", http.MethodPost, "/subtasks", map[string]any{"name": "s"}, http.StatusBadRequest},
		{"bad page", http.MethodGet, "/tasks?page=x", nil, http.StatusBadRequest},
		{"negative size", http.MethodGet, "/subtasks?size=-1", nil, http.StatusBadRequest},
		{"unknown task", http.MethodGet, "/tasks/nope", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := s.do(tc.method, tc.path, "alice", tc.body); w.Code != tc.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestProjectImageUpload(t *testing.T) {
	s := newTestServer(t)
	project := s.create("/projects", "alice", map[string]any{"name": "p"})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", "renamed")
	_ = mw.WriteField("users", "bob")
	fw, err := mw.CreateFormFile("image", "cover.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("png-bytes"))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/projects/"+project.ID, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token("alice"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("multipart update = %d %s", w.Code, w.Body.String())
	}

	updated := decode[idProgress](t, w)
	if updated.Image == "" || updated.ImageURL != "http://assets.test/assets/"+updated.Image {
		t.Fatalf("image = %q url = %q", updated.Image, updated.ImageURL)
	}

	asset := s.do(http.MethodGet, "/assets/"+updated.Image, "", nil)
	if asset.Code != http.StatusOK || asset.Body.String() != "png-bytes" {
		t.Fatalf("asset = %d %q", asset.Code, asset.Body.String())
	}

	// bob was added as a member by the form
	if w := s.do(http.MethodGet, "/projects/"+project.ID, "bob", nil); w.Code != http.StatusOK {
		t.Fatalf("new member read = %d", w.Code)
	}
}

func TestProjectImageTooLarge(t *testing.T) {
	s := newTestServer(t)
	project := s.create("/projects", "alice", map[string]any{"name": "p"})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "huge.png")
	_, _ = fw.Write(bytes.Repeat([]byte{'x'}, 2<<20))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPatch, "/projects/"+project.ID, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token("alice"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
}
