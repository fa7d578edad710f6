package http

import (
	"dockmate/internal/api/http/logger"
	"dockmate/internal/api/http/monitor"
	"dockmate/internal/api/http/service"
	"dockmate/internal/api/http/websocket"
	coreService "dockmate/internal/core/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	ServiceHandler coreService.ServiceHandler
	Subscriber     websocket.Subscriber
	StateReporter  monitor.StateReporter
	AuditLogger    logger.Logger
	Node           string
}

func NewApiRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	serviceHandler := service.NewRequestHandler(cfg.ServiceHandler)
	progressHandler := websocket.NewRequestHandler(cfg.Subscriber)
	monitorHandler := monitor.NewRequestHandler(cfg.StateReporter)

	// middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.AuditLogger != nil {
		r.Use(logger.LoggerMiddleware(cfg.AuditLogger, "dockmate", cfg.Node))
	}
	r.Use(middleware.Recoverer)

	// == v1 ==
	// == services ==
	r.Get("/v1/services", serviceHandler.GetServiceList)                              // list services
	r.Post("/v1/services", serviceHandler.CreateService)                              // create service
	r.Get("/v1/services/{serviceId}", serviceHandler.GetServiceById)                  // service detail
	r.Put("/v1/services/{serviceId}", serviceHandler.UpdateService)                   // update service
	r.Delete("/v1/services/{serviceId}", serviceHandler.RemoveService)                // remove service
	r.Post("/v1/services/{serviceId}/project", serviceHandler.UploadProject)          // upload project archive
	r.Post("/v1/services/{serviceId}/actions/{action}", serviceHandler.ServiceAction) // start / stop / restart
	r.Get("/v1/services/{serviceId}/stats", serviceHandler.GetServiceStats)           // container stats
	r.Get("/v1/services/{serviceId}/logs", serviceHandler.GetServiceLogs)             // container logs

	// == catalog and host ==
	r.Get("/v1/templates", serviceHandler.GetTemplateList)        // list templates
	r.Get("/v1/ports/available", serviceHandler.GetAvailablePort) // resolve a free port
	r.Get("/v1/networks", serviceHandler.GetNetworkList)          // list networks

	// == images ==
	r.Get("/v1/images", serviceHandler.GetImageList)      // list images
	r.Post("/v1/images/build", serviceHandler.BuildImage) // build image

	// == monitor ==
	r.Get("/v1/monitor/services", monitorHandler.GetServiceStates) // last observed service states

	// == progress ==
	r.Get("/v1/progress/{sessionId}", progressHandler.ServeHTTP) // progress stream (websocket)

	return r
}
