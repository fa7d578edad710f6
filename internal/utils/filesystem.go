package utils

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// FilesystemHandler is the seam between the engine and the host filesystem.
type FilesystemHandler interface {
	MkdirAll(path string, perm os.FileMode) error
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	CreateTemp(dir, pattern string) (*os.File, error)
	ReadDir(name string) ([]os.DirEntry, error)
	Stat(name string) (os.FileInfo, error)
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath string, newpath string) error
	IsNotExist(err error) bool
	Flock(fd int, how int) error
	Chmod(name string, mode os.FileMode) error
	Chown(name string, uid, gid int) error
}

func NewFilesystemExecutor() *FilesystemExecutor {
	return &FilesystemExecutor{}
}

type FilesystemExecutor struct{}

func (e *FilesystemExecutor) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (e *FilesystemExecutor) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (e *FilesystemExecutor) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (e *FilesystemExecutor) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (e *FilesystemExecutor) CreateTemp(dir, pattern string) (*os.File, error) {
	return os.CreateTemp(dir, pattern)
}

func (e *FilesystemExecutor) ReadDir(name string) ([]os.DirEntry, error) {
	return os.ReadDir(name)
}

func (e *FilesystemExecutor) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (e *FilesystemExecutor) Remove(name string) error {
	return os.Remove(name)
}

func (e *FilesystemExecutor) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (e *FilesystemExecutor) Rename(oldpath string, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (e *FilesystemExecutor) IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (e *FilesystemExecutor) Flock(fd int, how int) error {
	return unix.Flock(fd, how)
}

func (e *FilesystemExecutor) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}

func (e *FilesystemExecutor) Chown(name string, uid, gid int) error {
	return os.Chown(name, uid, gid)
}
