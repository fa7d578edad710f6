package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apimodel "dockmate/internal/api/http/utils"
	"dockmate/internal/apperr"
	coreService "dockmate/internal/core/service"
	"dockmate/internal/envvar"
	"dockmate/internal/runtime"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServiceHandler struct {
	coreService.ServiceHandler

	createReq     coreService.CreateModel
	updateReq     coreService.UpdateModel
	uploadName    string
	uploadBody    string
	removeVolumes bool
	actions       []string
	logsReq       coreService.LogsModel
	preferred     int

	result coreService.Result
	err    error
}

func (f *fakeServiceHandler) ListServices() ([]registry.Service, error) {
	return []registry.Service{{Id: "svc-1", Name: "cache1"}}, f.err
}

func (f *fakeServiceHandler) GetService(id string) (registry.Service, error) {
	if id != "svc-1" {
		return registry.Service{}, apperr.New(apperr.NotFound, "service %s not found", id)
	}
	return registry.Service{Id: "svc-1", Name: "cache1", EnvVars: []envvar.EnvVar{{Key: "PASS", Value: envvar.MaskToken, Secret: true}}}, nil
}

func (f *fakeServiceHandler) Create(_ context.Context, req coreService.CreateModel) (coreService.Result, error) {
	f.createReq = req
	return f.result, f.err
}

func (f *fakeServiceHandler) Update(_ context.Context, _ string, req coreService.UpdateModel) (coreService.Result, error) {
	f.updateReq = req
	return f.result, f.err
}

func (f *fakeServiceHandler) UploadProject(_ context.Context, _ string, req coreService.UploadModel) (coreService.Result, error) {
	f.uploadName = req.Filename
	b, _ := io.ReadAll(req.Content)
	f.uploadBody = string(b)
	return f.result, f.err
}

func (f *fakeServiceHandler) Remove(_ context.Context, _ string, removeVolumes bool) (coreService.Result, error) {
	f.removeVolumes = removeVolumes
	return f.result, f.err
}

func (f *fakeServiceHandler) Start(_ context.Context, id string) error {
	f.actions = append(f.actions, "start "+id)
	return f.err
}

func (f *fakeServiceHandler) Stop(_ context.Context, id string) error {
	f.actions = append(f.actions, "stop "+id)
	return f.err
}

func (f *fakeServiceHandler) Restart(_ context.Context, id string) error {
	f.actions = append(f.actions, "restart "+id)
	return f.err
}

func (f *fakeServiceHandler) Stats(context.Context, string) (runtime.StatsModel, error) {
	return runtime.StatsModel{CPUPercent: 12.5}, f.err
}

func (f *fakeServiceHandler) Logs(_ context.Context, _ string, req coreService.LogsModel) (io.ReadCloser, error) {
	f.logsReq = req
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("line 1\nline 2\n")), nil
}

func (f *fakeServiceHandler) ResolveAvailablePort(_ context.Context, preferred int) (int, bool) {
	f.preferred = preferred
	if preferred == 1 {
		return 0, false
	}
	return 6381, true
}

func (f *fakeServiceHandler) ListTemplates() []template.Template {
	return []template.Template{{Id: "redis-cache"}}
}

func newTestRouter(f *fakeServiceHandler) *chi.Mux {
	h := NewRequestHandler(f)
	r := chi.NewRouter()
	r.Get("/v1/services", h.GetServiceList)
	r.Post("/v1/services", h.CreateService)
	r.Get("/v1/services/{serviceId}", h.GetServiceById)
	r.Put("/v1/services/{serviceId}", h.UpdateService)
	r.Delete("/v1/services/{serviceId}", h.RemoveService)
	r.Post("/v1/services/{serviceId}/project", h.UploadProject)
	r.Post("/v1/services/{serviceId}/actions/{action}", h.ServiceAction)
	r.Get("/v1/services/{serviceId}/stats", h.GetServiceStats)
	r.Get("/v1/services/{serviceId}/logs", h.GetServiceLogs)
	r.Get("/v1/templates", h.GetTemplateList)
	r.Get("/v1/ports/available", h.GetAvailablePort)
	return r
}

func do(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestCreateService(t *testing.T) {
	f := &fakeServiceHandler{result: coreService.Result{
		Service:   &registry.Service{Id: "svc-1", Name: "cache1", HostPort: 6380},
		Progress:  []string{"Using host port 6380"},
		SessionId: "s-1",
	}}
	r := newTestRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/v1/services", strings.NewReader(
		`{"templateId":"redis-cache","name":"cache1","envVars":[{"key":"PASS","value":"x","secret":"true"}],"withManager":true,"sessionId":"s-1"}`))
	rec, body := do(t, r, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "redis-cache", f.createReq.TemplateId)
	assert.True(t, f.createReq.WithManager)
	assert.Equal(t, []envvar.EnvVar{{Key: "PASS", Value: "x", Secret: true}}, f.createReq.EnvVars)

	data := body["data"].(map[string]any)
	assert.Equal(t, "s-1", data["sessionId"])
	assert.Equal(t, float64(6380), data["service"].(map[string]any)["hostPort"])
}

func TestCreateServiceFailureCarriesProgress(t *testing.T) {
	f := &fakeServiceHandler{
		result: coreService.Result{Progress: []string{"Validating request for cache1", "Error: port 6380 is used by cache0"}},
		err:    apperr.New(apperr.PortConflict, "port 6380 is used by cache0"),
	}
	r := newTestRouter(f)

	rec, body := do(t, r, httptest.NewRequest(http.MethodPost, "/v1/services", strings.NewReader(`{"templateId":"redis-cache","name":"cache1","hostPort":6380}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "port 6380 is used by cache0", body["message"])
	progress := body["data"].(map[string]any)["progress"].([]any)
	assert.Len(t, progress, 2)
}

func TestCreateServiceBadJson(t *testing.T) {
	f := &fakeServiceHandler{}
	rec, body := do(t, newTestRouter(f), httptest.NewRequest(http.MethodPost, "/v1/services", strings.NewReader(`{"templateId":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["message"], "invalid json")
	assert.Empty(t, f.createReq.TemplateId)
}

func TestUpdateServiceKeepsOmittedEnv(t *testing.T) {
	f := &fakeServiceHandler{result: coreService.Result{Service: &registry.Service{Id: "svc-1"}}}
	r := newTestRouter(f)

	rec, _ := do(t, r, httptest.NewRequest(http.MethodPut, "/v1/services/svc-1", strings.NewReader(`{"hostPort":6390}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6390, f.updateReq.HostPort)
	assert.Nil(t, f.updateReq.EnvVars)
}

func TestGetServiceById(t *testing.T) {
	r := newTestRouter(&fakeServiceHandler{})

	rec, body := do(t, r, httptest.NewRequest(http.MethodGet, "/v1/services/svc-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	env := body["data"].(map[string]any)["envVars"].([]any)
	assert.Equal(t, envvar.MaskToken, env[0].(map[string]any)["value"])

	rec, body = do(t, r, httptest.NewRequest(http.MethodGet, "/v1/services/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "fail", body["status"])
}

func TestRemoveServiceQuery(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  bool
		code  int
	}{
		{name: "default keeps volumes", query: "", want: false, code: http.StatusOK},
		{name: "removeVolumes", query: "?removeVolumes=true", want: true, code: http.StatusOK},
		{name: "legacy removeFolder", query: "?removeFolder=1", want: true, code: http.StatusOK},
		{name: "invalid", query: "?removeVolumes=maybe", want: false, code: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeServiceHandler{}
			rec, _ := do(t, newTestRouter(f), httptest.NewRequest(http.MethodDelete, "/v1/services/svc-1"+tc.query, nil))
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.want, f.removeVolumes)
		})
	}
}

func TestServiceAction(t *testing.T) {
	f := &fakeServiceHandler{}
	r := newTestRouter(f)

	for _, action := range []string{"start", "stop", "restart"} {
		rec, _ := do(t, r, httptest.NewRequest(http.MethodPost, "/v1/services/svc-1/actions/"+action, nil))
		assert.Equal(t, http.StatusOK, rec.Code, action)
	}
	assert.Equal(t, []string{"start svc-1", "stop svc-1", "restart svc-1"}, f.actions)

	rec, _ := do(t, r, httptest.NewRequest(http.MethodPost, "/v1/services/svc-1/actions/pause", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.err = apperr.Wrap(apperr.RuntimeError, io.ErrUnexpectedEOF)
	rec, _ = do(t, r, httptest.NewRequest(http.MethodPost, "/v1/services/svc-1/actions/start", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUploadProject(t *testing.T) {
	f := &fakeServiceHandler{result: coreService.Result{Service: &registry.Service{Id: "svc-1"}}}
	r := newTestRouter(f)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "project.zip")
	require.NoError(t, err)
	_, _ = part.Write([]byte("PK-archive"))
	require.NoError(t, mw.WriteField("sessionId", "s-9"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/services/svc-1/project", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, _ := do(t, r, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "project.zip", f.uploadName)
	assert.Equal(t, "PK-archive", f.uploadBody)
}

func TestUploadProjectMissingFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sessionId", "s-9"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/services/svc-1/project", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, _ := do(t, newTestRouter(&fakeServiceHandler{}), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetServiceLogs(t *testing.T) {
	f := &fakeServiceHandler{}
	r := newTestRouter(f)

	rec, body := do(t, r, httptest.NewRequest(http.MethodGet, "/v1/services/svc-1/logs?tail=50", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, f.logsReq.Tail)
	assert.Equal(t, "line 1\nline 2\n", body["data"].(map[string]any)["logs"])

	rec, _ = do(t, r, httptest.NewRequest(http.MethodGet, "/v1/services/svc-1/logs?follow=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.logsReq.Follow)
	assert.Equal(t, "line 1\nline 2\n", rec.Body.String())

	rec, _ = do(t, r, httptest.NewRequest(http.MethodGet, "/v1/services/svc-1/logs?tail=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAvailablePort(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		wantStatus    int
		wantPreferred int
		wantData      map[string]any
	}{
		{
			name:          "taken preference answers with the next free port",
			query:         "?preferred=6380",
			wantStatus:    http.StatusOK,
			wantPreferred: 6380,
			wantData:      map[string]any{"port": float64(6381), "preferred": float64(6380), "available": true},
		},
		{
			name:       "no preference",
			wantStatus: http.StatusOK,
			wantData:   map[string]any{"port": float64(6381), "available": true},
		},
		{
			name:          "nothing free",
			query:         "?preferred=1",
			wantStatus:    http.StatusServiceUnavailable,
			wantPreferred: 1,
		},
		{
			name:       "not a number",
			query:      "?preferred=abc",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeServiceHandler{}
			r := newTestRouter(f)

			rec, body := do(t, r, httptest.NewRequest(http.MethodGet, "/v1/ports/available"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantPreferred, f.preferred)
			if tt.wantData != nil {
				assert.Equal(t, tt.wantData, body["data"])
			}
		})
	}
}

func TestGetTemplateList(t *testing.T) {
	rec, body := do(t, newTestRouter(&fakeServiceHandler{}), httptest.NewRequest(http.MethodGet, "/v1/templates", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp apimodel.ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, body["data"], 1)
}
