package monitor

import (
	"net/http"

	apimodel "dockmate/internal/api/http/utils"
	coreMonitor "dockmate/internal/monitor"
)

type StateReporter interface {
	States() []coreMonitor.ServiceState
}

func NewRequestHandler(reporter StateReporter) *RequestHandler {
	return &RequestHandler{reporter: reporter}
}

type RequestHandler struct {
	reporter StateReporter
}

// GetServiceStates godoc
// @Summary last observed container state of every service
// @Tags monitor
// @Produce json
// @Success 200 {object} apimodel.ApiResponse
// @Failure 503 {object} apimodel.ApiResponse
// @Router /v1/monitor/services [get]
func (h *RequestHandler) GetServiceStates(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		apimodel.RespondFail(w, http.StatusServiceUnavailable, "monitor disabled", nil)
		return
	}
	apimodel.RespondSuccess(w, http.StatusOK, "service states", h.reporter.States())
}
