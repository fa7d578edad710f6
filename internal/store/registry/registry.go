package registry

import (
	"dockmate/internal/apperr"
)

func NewRegistryManager(store Store) *RegistryManager {
	return &RegistryManager{
		store: store,
	}
}

type RegistryManager struct {
	store Store
}

func (m *RegistryManager) GetServiceList() ([]Service, error) {
	var out []Service
	err := m.store.View(func(list []Service) error {
		out = append([]Service{}, list...)
		return nil
	})
	return out, err
}

func (m *RegistryManager) GetServiceById(serviceId string) (Service, error) {
	var svc Service
	err := m.store.View(func(list []Service) error {
		for _, s := range list {
			if s.Id == serviceId {
				svc = s
				return nil
			}
		}
		return apperr.New(apperr.NotFound, "service %s not found", serviceId)
	})
	return svc, err
}

func (m *RegistryManager) GetServiceByName(name string) (Service, error) {
	var svc Service
	err := m.store.View(func(list []Service) error {
		for _, s := range list {
			if s.Name == name {
				svc = s
				return nil
			}
		}
		return apperr.New(apperr.NotFound, "service %s not found", name)
	})
	return svc, err
}

// SaveService inserts svc or replaces the entry with the same id in place.
func (m *RegistryManager) SaveService(svc Service) error {
	return m.store.Update(func(list *[]Service) error {
		for i := range *list {
			if (*list)[i].Id == svc.Id {
				(*list)[i] = svc
				return nil
			}
		}
		*list = append(*list, svc)
		return nil
	})
}

// RemoveService deletes the entry; an unknown id is not an error.
func (m *RegistryManager) RemoveService(serviceId string) error {
	return m.store.Update(func(list *[]Service) error {
		kept := (*list)[:0]
		for _, s := range *list {
			if s.Id != serviceId {
				kept = append(kept, s)
			}
		}
		*list = kept
		return nil
	})
}

// IsNameAlreadyUsed compares names case-sensitively.
func (m *RegistryManager) IsNameAlreadyUsed(name string) (bool, error) {
	var used bool
	err := m.store.View(func(list []Service) error {
		for _, s := range list {
			if s.Name == name {
				used = true
				return nil
			}
		}
		return nil
	})
	return used, err
}

// UsedPorts maps every registered host port to its holder.
func (m *RegistryManager) UsedPorts(excludeServiceId string) (map[int]Service, error) {
	ports := map[int]Service{}
	err := m.store.View(func(list []Service) error {
		for _, s := range list {
			if s.Id == excludeServiceId || s.HostPort == 0 {
				continue
			}
			ports[s.HostPort] = s
		}
		return nil
	})
	return ports, err
}
