package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"dockmate/internal/apperr"
	"dockmate/internal/store/registry"
)

// == service: project upload ==
func (s *LifecycleManager) UploadProject(ctx context.Context, serviceId string, uploadParameter UploadModel) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.registryHandler.GetServiceById(serviceId)
	if err != nil {
		op := s.newOperation(uploadParameter.SessionId, serviceId)
		return op.result(nil), op.fail(StepValidating, err)
	}
	op := s.newOperation(uploadParameter.SessionId, current.Name)

	svc, err := s.uploadProject(ctx, op, current, uploadParameter)
	if err != nil {
		return op.result(nil), err
	}
	return op.result(svc), nil
}

func (s *LifecycleManager) uploadProject(ctx context.Context, op *operation, current registry.Service, req UploadModel) (*registry.Service, error) {
	// 1. validate
	op.say(StepValidating, fmt.Sprintf("Validating project upload %s", req.Filename))
	tpl := s.templateFor(current)
	if !tpl.HasProjectOption {
		return nil, op.fail(StepValidating, apperr.New(apperr.InvalidRequest, "service %s does not accept project uploads", current.Name))
	}
	format, err := detectArchive(req.Filename)
	if err != nil {
		return nil, op.fail(StepValidating, err)
	}
	volume, ok := primaryVolume(current, tpl)
	if !ok {
		return nil, op.fail(StepValidating, apperr.New(apperr.InvalidRequest, "service %s has no volume to hold a project", current.Name))
	}
	if req.Content == nil {
		return nil, op.fail(StepValidating, apperr.New(apperr.InvalidRequest, "project archive is empty"))
	}
	op.ok(StepValidating, fmt.Sprintf("Project archive is %s", format))

	// 2. extract into the primary volume
	if err := s.extractProject(ctx, op, format, req.Content, volume.HostPath); err != nil {
		return nil, err
	}

	// 3. run command
	command, reason := deriveCommand(s.filesystemHandler, volume.HostPath)
	op.ok(StepCommandDeriving, fmt.Sprintf("Run command from %s: %s", reason, command))

	next := current
	next.Command = &command
	next.HasProject = true

	// 4. recreate
	if err := s.ensureImage(ctx, op, next.Image); err != nil {
		return nil, err
	}
	return s.replaceContainer(ctx, op, current, next, tpl)
}

// extractProject unpacks the archive next to dest and moves its content in,
// lifting a single top-level directory so the project root lands in dest.
func (s *LifecycleManager) extractProject(ctx context.Context, op *operation, format archiveFormat, content io.Reader, dest string) error {
	parent := filepath.Dir(dest)
	if err := s.filesystemHandler.MkdirAll(dest, 0o755); err != nil {
		return op.fail(StepProjectExtracting, fmt.Errorf("create %s: %w", dest, err))
	}

	archive, err := s.filesystemHandler.CreateTemp(parent, ".upload-*.archive")
	if err != nil {
		return op.fail(StepProjectExtracting, fmt.Errorf("stage archive: %w", err))
	}
	archivePath := archive.Name()
	defer s.filesystemHandler.Remove(archivePath)

	if _, err := io.Copy(archive, content); err != nil {
		archive.Close()
		return op.fail(StepProjectExtracting, fmt.Errorf("write archive: %w", err))
	}
	if err := archive.Close(); err != nil {
		return op.fail(StepProjectExtracting, fmt.Errorf("write archive: %w", err))
	}

	staging := filepath.Join(parent, ".upload-"+s.newId())
	if err := s.filesystemHandler.MkdirAll(staging, 0o755); err != nil {
		return op.fail(StepProjectExtracting, fmt.Errorf("create staging directory: %w", err))
	}
	defer s.filesystemHandler.RemoveAll(staging)

	name, args := extractArgs(format, archivePath, staging)
	op.say(StepProjectExtracting, fmt.Sprintf("Extracting %s archive", format))
	if out, err := s.commandFactory.Command(ctx, name, args...).CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return op.fail(StepProjectExtracting, apperr.New(apperr.UnsupportedFormat, "extract archive: %s", msg))
	}

	root, err := s.projectRoot(staging)
	if err != nil {
		return op.fail(StepProjectExtracting, err)
	}
	entries, err := s.filesystemHandler.ReadDir(root)
	if err != nil {
		return op.fail(StepProjectExtracting, fmt.Errorf("read extracted project: %w", err))
	}
	for _, e := range entries {
		target := filepath.Join(dest, e.Name())
		if err := s.filesystemHandler.RemoveAll(target); err != nil {
			return op.fail(StepProjectExtracting, fmt.Errorf("replace %s: %w", target, err))
		}
		if err := s.filesystemHandler.Rename(filepath.Join(root, e.Name()), target); err != nil {
			return op.fail(StepProjectExtracting, fmt.Errorf("move %s: %w", e.Name(), err))
		}
	}
	op.ok(StepProjectExtracting, fmt.Sprintf("Project extracted into %s", dest))
	return nil
}

func (s *LifecycleManager) projectRoot(staging string) (string, error) {
	entries, err := s.filesystemHandler.ReadDir(staging)
	if err != nil {
		return "", fmt.Errorf("read extracted project: %w", err)
	}
	var kept []string
	var onlyDir bool
	for _, e := range entries {
		if e.Name() == "__MACOSX" {
			continue
		}
		kept = append(kept, e.Name())
		onlyDir = e.IsDir()
	}
	if len(kept) == 1 && onlyDir {
		return filepath.Join(staging, kept[0]), nil
	}
	return staging, nil
}
