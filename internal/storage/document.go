package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorrupt is returned when a document exists on disk but cannot be decoded.
var ErrCorrupt = errors.New("corrupt document")

// CorruptError names the document that failed to decode. It matches ErrCorrupt
// with errors.Is.
type CorruptError struct {
	File string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("parsing %s: %v: %v", e.File, ErrCorrupt, e.Err)
}

func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

func (e *CorruptError) Unwrap() error { return e.Err }

// CorruptFile reports which document err refers to when it is a decode failure.
func CorruptFile(err error) (string, bool) {
	var corrupt *CorruptError
	if errors.As(err, &corrupt) {
		return corrupt.File, true
	}
	return "", false
}

// document is a single JSON file holding one value of type T. All reads and
// writes of the file inside this process go through mu.
type document[T any] struct {
	mu        sync.Mutex
	path      string
	defaults  func() T
	normalize func(*T)
}

func newDocument[T any](dir, name string, defaults func() T, normalize func(*T)) *document[T] {
	return &document[T]{
		path:      filepath.Join(dir, name),
		defaults:  defaults,
		normalize: normalize,
	}
}

func (d *document[T]) read() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load()
}

func (d *document[T]) write(value T) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.save(value)
}

func (d *document[T]) update(fn func(*T) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	value, err := d.load()
	if err != nil {
		return err
	}
	if err := fn(&value); err != nil {
		return err
	}
	return d.save(value)
}

// ensure writes the defaults when the file does not exist yet.
func (d *document[T]) ensure() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(d.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", filepath.Base(d.path), err)
	}
	return d.save(d.defaults())
}

// quarantine moves a corrupt file aside so the next load starts from defaults.
func (d *document[T]) quarantine(suffix string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.path + ".corrupt-" + suffix
	if err := os.Rename(d.path, target); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", filepath.Base(d.path), err)
	}
	return target, nil
}

func (d *document[T]) load() (T, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return d.defaults(), nil
		}
		var zero T
		return zero, fmt.Errorf("reading %s: %w", filepath.Base(d.path), err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		var zero T
		return zero, &CorruptError{File: filepath.Base(d.path), Err: err}
	}
	if d.normalize != nil {
		d.normalize(&value)
	}
	return value, nil
}

// save writes the document using a temp-file-then-rename so readers never
// observe a half-written file.
func (d *document[T]) save(value T) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(d.path), err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(d.path), err)
	}
	committed = true
	return nil
}
