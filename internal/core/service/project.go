package service

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"dockmate/internal/apperr"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"
	"dockmate/internal/utils"

	"al.essio.dev/pkg/shellescape"
)

type archiveFormat string

const (
	archiveZip   archiveFormat = "zip"
	archiveTar   archiveFormat = "tar"
	archiveTarGz archiveFormat = "tar.gz"
)

const genericStartCommand = "npm install && npm start"

func detectArchive(filename string) (archiveFormat, error) {
	name := strings.ToLower(strings.TrimSpace(filename))
	switch {
	case strings.HasSuffix(name, ".zip"):
		return archiveZip, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return archiveTarGz, nil
	case strings.HasSuffix(name, ".tar"):
		return archiveTar, nil
	}
	return "", apperr.New(apperr.UnsupportedFormat,
		"unsupported archive %q: expected .zip, .tar, .tar.gz or .tgz", filename)
}

// extractArgs is the external command that unpacks archive into dir.
func extractArgs(format archiveFormat, archive, dir string) (string, []string) {
	switch format {
	case archiveZip:
		return "unzip", []string{"-o", "-q", archive, "-d", dir}
	case archiveTarGz:
		return "tar", []string{"-xzf", archive, "-C", dir}
	default:
		return "tar", []string{"-xf", archive, "-C", dir}
	}
}

// primaryVolume is where an uploaded project lives: the mount of the
// template's first volume, or the service's first mount.
func primaryVolume(svc registry.Service, tpl template.Template) (registry.Volume, bool) {
	if len(tpl.Volumes) > 0 {
		for _, v := range svc.Volumes {
			if v.ContainerPath == tpl.Volumes[0].ContainerPath {
				return v, true
			}
		}
	}
	if len(svc.Volumes) > 0 {
		return svc.Volumes[0], true
	}
	return registry.Volume{}, false
}

type packageManifest struct {
	Main    string            `json:"main"`
	Scripts map[string]string `json:"scripts"`
}

// deriveCommand picks the run command of a Node project in dir: the start
// script, then the dev script, then the main file, then a plain
// install-and-start.
func deriveCommand(fs utils.FilesystemHandler, dir string) (command string, reason string) {
	b, err := fs.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return genericStartCommand, "no package.json found"
	}
	var manifest packageManifest
	if err := json.Unmarshal(b, &manifest); err != nil {
		return genericStartCommand, "package.json could not be parsed"
	}

	if strings.TrimSpace(manifest.Scripts["start"]) != "" {
		return "npm install && npm start", "start script"
	}
	if strings.TrimSpace(manifest.Scripts["dev"]) != "" {
		return "npm install && npm run dev", "dev script"
	}
	for _, main := range []string{manifest.Main, "index.js"} {
		main = strings.TrimSpace(main)
		if main == "" || filepath.IsAbs(main) || strings.Contains(main, "..") {
			continue
		}
		if _, err := fs.Stat(filepath.Join(dir, main)); err == nil {
			return "npm install && node " + shellescape.Quote(main), "main file " + main
		}
	}
	return genericStartCommand, "no entry point declared"
}
