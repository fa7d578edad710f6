package registry

// Store persists the registry document. Implementations serialize
// concurrent callers inside one process; the engine is the single writer.
type Store interface {
	// View passes a snapshot of the current list to fn.
	View(fn func(list []Service) error) error
	// Update passes the list to fn and persists the result only when fn
	// returns nil. A failed write leaves the previous document in place.
	Update(fn func(list *[]Service) error) error
	Init() error
	Close() error
}

type RegistryHandler interface {
	GetServiceList() ([]Service, error)
	GetServiceById(serviceId string) (Service, error)
	GetServiceByName(name string) (Service, error)
	SaveService(svc Service) error
	RemoveService(serviceId string) error
	IsNameAlreadyUsed(name string) (bool, error)
	UsedPorts(excludeServiceId string) (map[int]Service, error)
}
