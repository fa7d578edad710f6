package service

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"dockmate/internal/api/http/logger"
	apimodel "dockmate/internal/api/http/utils"
	"dockmate/internal/apperr"
	coreService "dockmate/internal/core/service"

	"github.com/go-chi/chi/v5"
)

const (
	maxUploadBytes = 512 << 20
	maxMemoryBytes = 32 << 20
	maxLogBytes    = 8 << 20
)

func NewRequestHandler(serviceHandler coreService.ServiceHandler) *RequestHandler {
	return &RequestHandler{
		serviceHandler: serviceHandler,
	}
}

type RequestHandler struct {
	serviceHandler coreService.ServiceHandler
}

// GetServiceList godoc
// @Summary list services
// @Tags services
// @Produce json
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/services [get]
func (h *RequestHandler) GetServiceList(w http.ResponseWriter, r *http.Request) {
	list, err := h.serviceHandler.ListServices()
	if err != nil {
		apimodel.RespondError(w, err, nil)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "service list", list)
}

// GetServiceById godoc
// @Summary get service detail
// @Tags services
// @Param serviceId path string true "Service ID"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/services/{serviceId} [get]
func (h *RequestHandler) GetServiceById(w http.ResponseWriter, r *http.Request) {
	serviceId := chi.URLParam(r, "serviceId")
	svc, err := h.serviceHandler.GetService(serviceId)
	if err != nil {
		apimodel.RespondError(w, err, nil)
		return
	}
	logger.SetTarget(r.Context(), logger.Target{ServiceId: svc.Id, ServiceName: svc.Name})
	apimodel.RespondSuccess(w, http.StatusOK, "service detail", svc)
}

// CreateService godoc
// @Summary create service
// @Description create a service from a template, optionally with its manager
// @Tags services
// @Accept json
// @Produce json
// @Param request body CreateServiceRequest true "Service request"
// @Success 201 {object} apimodel.ApiResponse
// @Router /v1/services [post]
func (h *RequestHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	// decode request
	var req CreateServiceRequest
	if err := apimodel.DecodeRequestBody(r, &req); err != nil {
		apimodel.RespondFail(w, http.StatusBadRequest, "invalid json: "+err.Error(), nil)
		return
	}
	logger.SetTarget(r.Context(), logger.Target{
		ServiceName: req.Name,
		TemplateId:  req.TemplateId,
		ImageRef:    req.Image,
		HostPort:    req.HostPort,
		Network:     req.NetworkName,
		SessionId:   req.SessionId,
	})

	// service: create
	result, err := h.serviceHandler.Create(r.Context(), coreService.CreateModel{
		TemplateId:   req.TemplateId,
		Name:         req.Name,
		HostPort:     req.HostPort,
		Image:        req.Image,
		EnvVars:      req.EnvVars,
		Command:      req.Command,
		NetworkName:  req.NetworkName,
		Volumes:      req.Volumes,
		WithManager:  req.WithManager,
		ConfigureFor: req.ConfigureFor,
		SessionId:    req.SessionId,
	})
	if err != nil {
		logger.SetReason(r.Context(), err.Error())
		apimodel.RespondError(w, err, result)
		return
	}
	logger.SetTarget(r.Context(), logger.Target{ServiceId: result.Service.Id, HostPort: result.Service.HostPort})

	// encode response
	apimodel.RespondSuccess(w, http.StatusCreated, "service created", result)
}

// UpdateService godoc
// @Summary update service
// @Description recreate the container of a service with new settings
// @Tags services
// @Accept json
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param request body UpdateServiceRequest true "Update request"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/services/{serviceId} [put]
func (h *RequestHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	serviceId := chi.URLParam(r, "serviceId")

	var req UpdateServiceRequest
	if err := apimodel.DecodeRequestBody(r, &req); err != nil {
		apimodel.RespondFail(w, http.StatusBadRequest, "invalid json: "+err.Error(), nil)
		return
	}
	logger.SetTarget(r.Context(), logger.Target{
		ServiceId: serviceId,
		ImageRef:  req.Image,
		HostPort:  req.HostPort,
		Network:   req.NetworkName,
		SessionId: req.SessionId,
	})

	result, err := h.serviceHandler.Update(r.Context(), serviceId, coreService.UpdateModel{
		HostPort:    req.HostPort,
		Image:       req.Image,
		EnvVars:     req.EnvVars,
		Command:     req.Command,
		NetworkName: req.NetworkName,
		Volumes:     req.Volumes,
		SessionId:   req.SessionId,
	})
	if err != nil {
		logger.SetReason(r.Context(), err.Error())
		apimodel.RespondError(w, err, result)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "service updated", result)
}

// UploadProject godoc
// @Summary upload project
// @Description extract a project archive into the service volume and restart it
// @Tags services
// @Accept multipart/form-data
// @Produce json
// @Param serviceId path string true "Service ID"
// @Param file formData file true "zip, tar, tar.gz or tgz archive"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/services/{serviceId}/project [post]
func (h *RequestHandler) UploadProject(w http.ResponseWriter, r *http.Request) {
	serviceId := chi.URLParam(r, "serviceId")
	logger.SetTarget(r.Context(), logger.Target{ServiceId: serviceId})

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		apimodel.RespondFail(w, http.StatusBadRequest, "invalid upload: "+err.Error(), nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		apimodel.RespondFail(w, http.StatusBadRequest, "missing file: "+err.Error(), nil)
		return
	}
	defer file.Close()

	sessionId := r.FormValue("sessionId")
	logger.PutExtra(r.Context(), "filename", header.Filename)

	result, err := h.serviceHandler.UploadProject(r.Context(), serviceId, coreService.UploadModel{
		Filename:  header.Filename,
		Content:   file,
		SessionId: sessionId,
	})
	if err != nil {
		logger.SetReason(r.Context(), err.Error())
		apimodel.RespondError(w, err, result)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "project uploaded", result)
}

// RemoveService godoc
// @Summary remove service
// @Tags services
// @Param serviceId path string true "Service ID"
// @Param removeVolumes query bool false "also delete volume directories"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/services/{serviceId} [delete]
func (h *RequestHandler) RemoveService(w http.ResponseWriter, r *http.Request) {
	serviceId := chi.URLParam(r, "serviceId")
	logger.SetTarget(r.Context(), logger.Target{ServiceId: serviceId})

	removeVolumes, err := boolQuery(r, "removeVolumes", "removeFolder")
	if err != nil {
		apimodel.RespondFail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.serviceHandler.Remove(r.Context(), serviceId, removeVolumes)
	res := RemoveServiceResponse{ServiceId: serviceId, Progress: result.Progress, SessionId: result.SessionId}
	if err != nil {
		logger.SetReason(r.Context(), err.Error())
		apimodel.RespondError(w, err, res)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "service removed", res)
}

// ServiceAction godoc
// @Summary start, stop or restart a service
// @Tags services
// @Param serviceId path string true "Service ID"
// @Param action path string true "start | stop | restart"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/services/{serviceId}/actions/{action} [post]
func (h *RequestHandler) ServiceAction(w http.ResponseWriter, r *http.Request) {
	serviceId := chi.URLParam(r, "serviceId")
	action := chi.URLParam(r, "action")
	logger.SetTarget(r.Context(), logger.Target{ServiceId: serviceId})

	var err error
	switch action {
	case "start":
		err = h.serviceHandler.Start(r.Context(), serviceId)
	case "stop":
		err = h.serviceHandler.Stop(r.Context(), serviceId)
	case "restart":
		err = h.serviceHandler.Restart(r.Context(), serviceId)
	default:
		apimodel.RespondFail(w, http.StatusBadRequest, "unknown action "+strconv.Quote(action), nil)
		return
	}
	logger.SetAction(r.Context(), "service."+action)
	if err != nil {
		logger.SetReason(r.Context(), err.Error())
		apimodel.RespondError(w, err, map[string]string{"serviceId": serviceId})
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "service "+action+" done", map[string]string{"serviceId": serviceId})
}

// GetServiceStats godoc
// @Summary container statistics
// @Tags services
// @Param serviceId path string true "Service ID"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/services/{serviceId}/stats [get]
func (h *RequestHandler) GetServiceStats(w http.ResponseWriter, r *http.Request) {
	serviceId := chi.URLParam(r, "serviceId")
	stats, err := h.serviceHandler.Stats(r.Context(), serviceId)
	if err != nil {
		apimodel.RespondError(w, err, nil)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "service stats", stats)
}

// GetServiceLogs godoc
// @Summary container logs
// @Description the last lines of output, or a plain-text stream with follow=true
// @Tags services
// @Param serviceId path string true "Service ID"
// @Param tail query int false "number of lines"
// @Param follow query bool false "stream new output"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/services/{serviceId}/logs [get]
func (h *RequestHandler) GetServiceLogs(w http.ResponseWriter, r *http.Request) {
	serviceId := chi.URLParam(r, "serviceId")

	tail := 0
	if v := r.URL.Query().Get("tail"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apimodel.RespondFail(w, http.StatusBadRequest, "tail must be a non-negative number", nil)
			return
		}
		tail = n
	}
	follow, err := boolQuery(r, "follow")
	if err != nil {
		apimodel.RespondFail(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rc, err := h.serviceHandler.Logs(r.Context(), serviceId, coreService.LogsModel{Follow: follow, Tail: tail})
	if err != nil {
		apimodel.RespondError(w, err, nil)
		return
	}
	defer rc.Close()

	if !follow {
		b, err := io.ReadAll(io.LimitReader(rc, maxLogBytes))
		if err != nil {
			apimodel.RespondError(w, apperr.Wrap(apperr.RuntimeError, err), nil)
			return
		}
		apimodel.RespondSuccess(w, http.StatusOK, "service logs", LogsResponse{ServiceId: serviceId, Logs: string(b)})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(flushWriter{w: w}, rc)
}

// GetTemplateList godoc
// @Summary list templates
// @Tags templates
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/templates [get]
func (h *RequestHandler) GetTemplateList(w http.ResponseWriter, r *http.Request) {
	apimodel.RespondSuccess(w, http.StatusOK, "template list", h.serviceHandler.ListTemplates())
}

// GetAvailablePort godoc
// @Summary find a free host port, the preferred one or the next free one above it
// @Tags ports
// @Param preferred query int false "port to try first"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/ports/available [get]
func (h *RequestHandler) GetAvailablePort(w http.ResponseWriter, r *http.Request) {
	preferred := 0
	if v := r.URL.Query().Get("preferred"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apimodel.RespondFail(w, http.StatusBadRequest, "preferred must be a number", nil)
			return
		}
		preferred = n
	}

	port, ok := h.serviceHandler.ResolveAvailablePort(r.Context(), preferred)
	if !ok {
		apimodel.RespondFail(w, http.StatusServiceUnavailable, "no port available", AvailablePortResponse{})
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "port available", AvailablePortResponse{Port: port, Preferred: preferred, Available: true})
}

// GetImageList godoc
// @Summary list local images
// @Tags images
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/images [get]
func (h *RequestHandler) GetImageList(w http.ResponseWriter, r *http.Request) {
	list, err := h.serviceHandler.ListImages(r.Context())
	if err != nil {
		apimodel.RespondError(w, err, nil)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "image list", list)
}

// BuildImage godoc
// @Summary build an image
// @Description build a local image from a tar build context in the request body
// @Tags images
// @Accept application/x-tar
// @Param tag query string true "image tag"
// @Param dockerfile query string false "Dockerfile path inside the context"
// @Param sessionId query string false "progress session"
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/images/build [post]
func (h *RequestHandler) BuildImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logger.SetTarget(r.Context(), logger.Target{ImageRef: q.Get("tag"), SessionId: q.Get("sessionId")})

	result, err := h.serviceHandler.BuildImage(r.Context(), coreService.BuildModel{
		Context:    http.MaxBytesReader(w, r.Body, maxUploadBytes),
		Tag:        q.Get("tag"),
		Dockerfile: q.Get("dockerfile"),
		SessionId:  q.Get("sessionId"),
	})
	if err != nil {
		logger.SetReason(r.Context(), err.Error())
		apimodel.RespondError(w, err, result)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "image built", result)
}

// GetNetworkList godoc
// @Summary list networks
// @Tags networks
// @Success 200 {object} apimodel.ApiResponse
// @Router /v1/networks [get]
func (h *RequestHandler) GetNetworkList(w http.ResponseWriter, r *http.Request) {
	list, err := h.serviceHandler.ListNetworks(r.Context())
	if err != nil {
		apimodel.RespondError(w, err, nil)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "network list", list)
}

// boolQuery reads the first of names present in the query string.
func boolQuery(r *http.Request, names ...string) (bool, error) {
	q := r.URL.Query()
	for _, name := range names {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, errors.New(name + " must be true or false")
		}
		return b, nil
	}
	return false, nil
}

type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if fl, ok := f.w.(http.Flusher); ok {
		fl.Flush()
	}
	return n, err
}
