package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"dockmate/internal/logger"
	"dockmate/internal/utils"
)

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:              path,
		filesystemHandler: utils.NewFilesystemExecutor(),
	}
}

// FileStore keeps the registry as one JSON array rewritten whole on every
// save: written to a temp file, fsynced, then renamed over the original.
type FileStore struct {
	path              string
	mu                sync.Mutex
	filesystemHandler utils.FilesystemHandler
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) View(fn func(list []Service) error) error {
	return s.withFlock(func() error {
		list, err := s.load()
		if err != nil {
			return err
		}
		return fn(list)
	})
}

func (s *FileStore) Update(fn func(list *[]Service) error) error {
	return s.withFlock(func() error {
		list, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(&list); err != nil {
			return err
		}
		return s.atomicSave(list)
	})
}

// Init writes an empty document when none exists.
func (s *FileStore) Init() error {
	return s.withFlock(func() error {
		if _, err := s.filesystemHandler.Stat(s.path); err == nil {
			return nil
		} else if !s.filesystemHandler.IsNotExist(err) {
			return err
		}
		return s.atomicSave([]Service{})
	})
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) withFlock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.filesystemHandler.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	lf, err := s.filesystemHandler.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer lf.Close()

	if err := s.filesystemHandler.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer s.filesystemHandler.Flock(int(lf.Fd()), syscall.LOCK_UN)

	return fn()
}

// load treats a missing or unparseable document as an empty registry. A
// corrupt document is copied aside before the next save overwrites it.
func (s *FileStore) load() ([]Service, error) {
	b, err := s.filesystemHandler.ReadFile(s.path)
	if err != nil {
		if s.filesystemHandler.IsNotExist(err) {
			return []Service{}, nil
		}
		return nil, err
	}

	var list []Service
	if err := json.Unmarshal(b, &list); err != nil {
		logger.WithField("path", s.path).Warnf("registry document unreadable, starting empty: %v", err)
		if werr := s.filesystemHandler.WriteFile(s.path+".corrupt", b, 0o600); werr != nil {
			logger.Warnf("failed to keep corrupt registry copy: %v", werr)
		}
		return []Service{}, nil
	}
	if list == nil {
		list = []Service{}
	}
	return list, nil
}

func (s *FileStore) atomicSave(list []Service) error {
	tmp := s.path + ".tmp"

	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	f, err := s.filesystemHandler.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.filesystemHandler.Rename(tmp, s.path)
}
