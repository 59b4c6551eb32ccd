package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LoadedPrompts holds prompt text read from files for one operation
type LoadedPrompts struct {
	System string
	User   string
}

// promptFile ties a file on disk to the operation and slot it feeds
type promptFile struct {
	operation string
	kind      string // "system" or "user"
	path      string
}

// PromptStore holds prompt file contents. Reload replaces an entry in place
// so a running server picks up edited prompts without a restart.
type PromptStore struct {
	mu      sync.RWMutex
	files   []promptFile
	prompts map[string]LoadedPrompts
}

// NewPromptStore returns an empty store
func NewPromptStore() *PromptStore {
	return &PromptStore{prompts: make(map[string]LoadedPrompts)}
}

// LoadPrompts reads every prompt file referenced by the configuration
func LoadPrompts(c *Config) (*PromptStore, error) {
	store := NewPromptStore()

	for _, op := range Operations {
		block := c.operationBlock(op)
		if block.Prompts.SystemFile != "" {
			store.files = append(store.files, promptFile{operation: op, kind: "system", path: block.Prompts.SystemFile})
		}
		if block.Prompts.UserFile != "" {
			store.files = append(store.files, promptFile{operation: op, kind: "user", path: block.Prompts.UserFile})
		}
	}

	if len(store.files) == 0 {
		return store, nil
	}

	log.Printf("[CONFIG] Loading %d prompt file(s)", len(store.files))
	for _, pf := range store.files {
		if err := store.load(pf); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Get returns the file-loaded prompts for op. Empty fields mean no file was configured.
func (s *PromptStore) Get(op string) LoadedPrompts {
	if s == nil {
		return LoadedPrompts{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts[op]
}

// Files returns the absolute paths of every configured prompt file
func (s *PromptStore) Files() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.files))
	for _, pf := range s.files {
		paths = append(paths, pf.path)
	}
	return paths
}

// Reload re-reads every prompt slot backed by path. On error the previous
// content is kept.
func (s *PromptStore) Reload(path string) (int, error) {
	if s == nil {
		return 0, nil
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}

	reloaded := 0
	for _, pf := range s.filesSnapshot() {
		abs, err := filepath.Abs(pf.path)
		if err != nil || abs != target {
			continue
		}
		if err := s.load(pf); err != nil {
			return reloaded, err
		}
		reloaded++
	}
	return reloaded, nil
}

func (s *PromptStore) filesSnapshot() []promptFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]promptFile(nil), s.files...)
}

func (s *PromptStore) load(pf promptFile) error {
	content, err := readPromptFile(pf.path, pf.operation, pf.kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := s.prompts[pf.operation]
	if pf.kind == "system" {
		loaded.System = content
	} else {
		loaded.User = content
	}
	s.prompts[pf.operation] = loaded
	return nil
}

func readPromptFile(path, operation, kind string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid %s prompt path for %s: %w", kind, operation, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("%s prompt file for %s not accessible: %w", kind, operation, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s prompt file for %s is a directory: %s", kind, operation, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s prompt file for %s: %w", kind, operation, err)
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", fmt.Errorf("%s prompt file for %s is empty: %s", kind, operation, absPath)
	}

	log.Printf("[CONFIG] Loaded %s prompt for %s from %s (%d bytes)", kind, operation, absPath, len(text))
	return text, nil
}
