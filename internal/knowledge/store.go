// Package knowledge implements the internal knowledge base: a local company
// document (or a directory of them) answered through an LLM that is told to
// use nothing else.
package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrDocumentNotFound is returned when the knowledge base path does not exist.
var ErrDocumentNotFound = errors.New("company information file not found")

// ErrNoCompanies is returned when a knowledge base directory holds no documents.
var ErrNoCompanies = errors.New("no companies found in the knowledge base")

// documentExts lists the file extensions loaded from a knowledge base directory.
var documentExts = map[string]bool{".txt": true, ".md": true, "": true}

// Store holds the knowledge base document, loading it lazily and reloading
// it when the file changes on disk.
type Store struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	doc     string
	loadErr error
	loaded  bool

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewStore creates a store for the document at path. If path is a directory,
// every .txt/.md file inside it is a separate company document.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Path returns the knowledge base path.
func (s *Store) Path() string {
	return s.path
}

// Document returns the knowledge base text, loading it on first use.
func (s *Store) Document() (string, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.doc, s.loadErr
	}
	s.mu.RUnlock()

	if err := s.Reload(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.loadErr
}

// Reload re-reads the knowledge base from disk.
func (s *Store) Reload() error {
	doc, err := load(s.path)

	s.mu.Lock()
	s.doc = doc
	s.loadErr = err
	s.loaded = true
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("knowledge base load failed", zap.String("path", s.path), zap.Error(err))
	} else {
		s.logger.Debug("knowledge base loaded", zap.String("path", s.path), zap.Int("bytes", len(doc)))
	}
	return err
}

// Save replaces the knowledge base document. Saving is only supported for
// single-file knowledge bases.
func (s *Store) Save(content string) error {
	if info, err := os.Stat(s.path); err == nil && info.IsDir() {
		return fmt.Errorf("save knowledge base: %s is a directory", s.path)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create knowledge base directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write knowledge base: %w", err)
	}
	return s.Reload()
}

// Watch starts reloading the document whenever it changes. The parent
// directory is watched so editors that replace the file are picked up.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	target := s.path
	if info, err := os.Stat(s.path); err != nil || !info.IsDir() {
		target = filepath.Dir(s.path)
	}
	if err := watcher.Add(target); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", target, err)
	}

	s.watcher = watcher
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				_ = s.Reload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Debug("knowledge base watcher error", zap.Error(err))
		}
	}
}

// relevant reports whether a changed path affects the knowledge base.
func (s *Store) relevant(name string) bool {
	clean := filepath.Clean(name)
	if clean == filepath.Clean(s.path) {
		return true
	}
	return filepath.Dir(clean) == filepath.Clean(s.path)
}

// Close stops the watcher.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
}

// load reads a single document, or concatenates a directory of documents
// under per-company headings in name order.
func load(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrDocumentNotFound
		}
		return "", fmt.Errorf("stat knowledge base: %w", err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read knowledge base: %w", err)
		}
		return string(data), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("read knowledge base directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if documentExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", ErrNoCompanies
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		company := strings.TrimSuffix(name, filepath.Ext(name))
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", company, strings.TrimSpace(string(data)))
	}
	return strings.TrimSpace(sb.String()), nil
}
