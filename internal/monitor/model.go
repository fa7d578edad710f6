package monitor

import "time"

// StateMissing marks a registered service whose container is gone.
const StateMissing = "missing"

type ServiceMeta struct {
	ServiceId   string
	ServiceName string
	TemplateId  string
	ContainerId string
	HostPort    int
}

// ServiceState is the last observed container state of a service.
type ServiceState struct {
	ServiceId   string    `json:"serviceId"`
	ServiceName string    `json:"serviceName"`
	ContainerId string    `json:"containerId"`
	State       string    `json:"state"`
	Status      string    `json:"status"`
	Since       time.Time `json:"since"`
	CheckedAt   time.Time `json:"checkedAt"`
}

type MetricsRecord struct {
	GeneratedTS string `json:"generated_ts"`

	ServiceId   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	TemplateId  string `json:"template_id"`
	ContainerId string `json:"container_id"`
	HostPort    int    `json:"host_port"`
	State       string `json:"state"`

	CPUPercent       float64 `json:"cpu_percent"`
	MemoryUsageBytes uint64  `json:"memory_usage_bytes"`
	MemoryLimitBytes uint64  `json:"memory_limit_bytes"`
	MemoryPercent    float64 `json:"memory_percent"`
	NetworkRxBytes   uint64  `json:"network_rx_bytes"`
	NetworkTxBytes   uint64  `json:"network_tx_bytes"`
}
