package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dockmate/internal/logger"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type overlayFile struct {
	Templates []Template `yaml:"templates"`
}

func NewCatalog(overlayPath string, extraImages []string) *Catalog {
	c := &Catalog{
		overlayPath: overlayPath,
		extraImages: extraImages,
		builtins:    make(map[string]Template, len(builtinTemplates)),
	}
	for _, t := range builtinTemplates {
		c.builtins[t.Id] = t
	}
	c.current = c.builtins
	return c
}

// Catalog serves the compiled-in templates merged with an optional overlay
// file. Overlay entries replace built-ins with the same id.
type Catalog struct {
	mu          sync.RWMutex
	overlayPath string
	extraImages []string
	builtins    map[string]Template
	current     map[string]Template
}

func (c *Catalog) Get(id string) (Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.current[id]
	return t, ok
}

func (c *Catalog) List() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Template, 0, len(c.current))
	for _, t := range c.current {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// AllowedImages is every catalog image reference plus configured extras.
func (c *Catalog) AllowedImages() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(ref string) {
		ref = normalizeRef(ref)
		if ref == "" {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	for _, t := range c.List() {
		add(t.ImageRef())
	}
	for _, ref := range c.extraImages {
		add(ref)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) IsImageAllowed(ref string) bool {
	ref = normalizeRef(ref)
	if ref == "" {
		return false
	}
	for _, allowed := range c.AllowedImages() {
		if allowed == ref {
			return true
		}
	}
	return false
}

// normalizeRef appends the implicit "latest" tag. A digest reference is
// kept as is.
func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "@") {
		return ref
	}
	if strings.LastIndex(ref, ":") <= strings.LastIndex(ref, "/") {
		ref += ":latest"
	}
	return ref
}

// Load reads the overlay file and swaps it in. A missing overlay resets the
// catalog to the built-ins; a broken one leaves the catalog untouched.
func (c *Catalog) Load() error {
	if c.overlayPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.overlayPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.mu.Lock()
			c.current = c.builtins
			c.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read template overlay: %w", err)
	}

	var file overlayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse template overlay %s: %w", c.overlayPath, err)
	}

	merged := make(map[string]Template, len(c.builtins)+len(file.Templates))
	for id, t := range c.builtins {
		merged[id] = t
	}
	for _, t := range file.Templates {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("template overlay %s: %w", c.overlayPath, err)
		}
		merged[t.Id] = t
	}

	c.mu.Lock()
	c.current = merged
	c.mu.Unlock()
	logger.WithField("templates", len(merged)).Infof("template catalog loaded from %s", c.overlayPath)
	return nil
}

// Watch reloads the overlay whenever it changes until ctx is cancelled.
// The parent directory is watched so editors that replace the file by
// rename are picked up.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.overlayPath == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(c.overlayPath)
	base := filepath.Base(c.overlayPath)
	if err := w.Add(dir); err != nil {
		return err
	}

	var pending atomic.Bool
	trigger := func() {
		if pending.CompareAndSwap(false, true) {
			go func() {
				time.Sleep(50 * time.Millisecond)
				if err := c.Load(); err != nil {
					logger.Warnf("template overlay rejected, keeping previous catalog: %v", err)
				}
				pending.Store(false)
			}()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("template overlay watch: %v", err)
		}
	}
}
