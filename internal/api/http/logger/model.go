package logger

import "fmt"

type Logger interface {
	Write(event Event)
}

// Event is one audit line: who called which route, on what, and how it ended.
type Event struct {
	TS            string   `json:"ts"`
	EventId       string   `json:"event_id"`
	CorrelationId string   `json:"correlation_id,omitempty"`
	Severity      Severity `json:"severity"`

	Actor Actor `json:"actor"`

	Action string `json:"action,omitempty"`
	Target Target `json:"target,omitempty"`

	Request Request `json:"request"`
	Result  Result  `json:"result"`

	Runtime Runtime `json:"runtime"`

	Extra map[string]any `json:"extra,omitempty"`
}

type Actor struct {
	PeerIp    string `json:"peer_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type Target struct {
	// service
	ServiceId   string `json:"service_id,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	TemplateId  string `json:"template_id,omitempty"`
	ImageRef    string `json:"image_ref,omitempty"`
	HostPort    int    `json:"host_port,omitempty"`
	Network     string `json:"network,omitempty"`

	// progress
	SessionId string `json:"session_id,omitempty"`
}

// merge copies the non-zero fields of o.
func (t *Target) merge(o Target) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&t.ServiceId, o.ServiceId)
	setString(&t.ServiceName, o.ServiceName)
	setString(&t.TemplateId, o.TemplateId)
	setString(&t.ImageRef, o.ImageRef)
	setString(&t.Network, o.Network)
	setString(&t.SessionId, o.SessionId)
	if o.HostPort > 0 {
		t.HostPort = o.HostPort
	}
}

type Request struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Route  string `json:"route,omitempty"`
	Host   string `json:"host,omitempty"`
}

type Result struct {
	Status    string `json:"status"`
	Code      int    `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type Runtime struct {
	Component string `json:"component,omitempty"`
	Node      string `json:"node,omitempty"`
}

type ctxKey int

type Severity int

const (
	SevInfo Severity = iota
	SevLow
	SevMedium
	SevHigh
	SevCritical
)

var severityNames = []string{"information", "low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SevInfo || s > SevCritical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// bump raises the severity one level, saturating at critical.
func (s Severity) bump() Severity {
	if s >= SevCritical {
		return SevCritical
	}
	return s + 1
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	for i, name := range severityNames {
		if name == string(b) {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", b)
}

type Rule struct {
	Method   string
	Pattern  string
	Action   string
	Severity Severity
}

var rules = []Rule{
	// service
	{"GET", "/v1/services", "service.list", SevInfo},
	{"GET", "/v1/services/{serviceId}", "service.info", SevInfo},
	{"POST", "/v1/services", "service.create", SevMedium},
	{"PUT", "/v1/services/{serviceId}", "service.update", SevMedium},
	{"POST", "/v1/services/{serviceId}/project", "service.project.upload", SevHigh},
	{"DELETE", "/v1/services/{serviceId}", "service.remove", SevHigh},
	{"POST", "/v1/services/{serviceId}/actions/{action}", "service.action", SevMedium},
	{"GET", "/v1/services/{serviceId}/stats", "service.stats", SevInfo},
	{"GET", "/v1/services/{serviceId}/logs", "service.logs", SevLow},

	// catalog and host
	{"GET", "/v1/templates", "template.list", SevInfo},
	{"GET", "/v1/ports/available", "port.resolve", SevInfo},
	{"GET", "/v1/networks", "network.list", SevInfo},

	// image
	{"GET", "/v1/images", "image.list", SevInfo},
	{"POST", "/v1/images/build", "image.build", SevHigh},

	// monitor
	{"GET", "/v1/monitor/services", "monitor.services", SevInfo},

	// websocket
	{"GET", "/v1/progress/{sessionId}", "ws.progress", SevInfo},
}

// actionSeverity covers actions that handlers name themselves.
var actionSeverity = map[string]Severity{
	"service.start":   SevMedium,
	"service.stop":    SevHigh,
	"service.restart": SevMedium,
}
