package monitor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxBytes   = 20 * 1024 * 1024
	defaultMaxBackups = 3
)

// MetricsWriter appends JSON lines to a file and rotates it to path.1,
// path.2, ... once it grows past maxBytes.
type MetricsWriter struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	size int64
}

func NewMetricsWriter(path string) (*MetricsWriter, error) {
	return NewMetricsWriterWithRotation(path, defaultMaxBytes, defaultMaxBackups)
}

func NewMetricsWriterWithRotation(path string, maxBytes int64, maxBackups int) (*MetricsWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	w := &MetricsWriter{path: path, maxBytes: maxBytes, maxBackups: maxBackups}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *MetricsWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.size = 0
	if st, err := f.Stat(); err == nil {
		w.size = st.Size()
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	return nil
}

func (w *MetricsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	_ = w.buf.Flush()
	err := w.file.Close()
	w.file, w.buf = nil, nil
	return err
}

func (w *MetricsWriter) WriteJSONL(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("metrics writer closed")
	}
	if w.maxBytes > 0 && w.size > 0 && w.size+int64(len(b)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	w.size += int64(len(b))
	return nil
}

func (w *MetricsWriter) backupName(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

func (w *MetricsWriter) rotate() error {
	_ = w.buf.Flush()
	_ = w.file.Close()

	if w.maxBackups > 0 {
		_ = os.Remove(w.backupName(w.maxBackups))
		for i := w.maxBackups - 1; i >= 1; i-- {
			if _, err := os.Stat(w.backupName(i)); err == nil {
				_ = os.Rename(w.backupName(i), w.backupName(i+1))
			}
		}
		_ = os.Rename(w.path, w.backupName(1))
	} else {
		_ = os.Remove(w.path)
	}
	return w.open()
}
