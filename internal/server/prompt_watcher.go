package server

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"careercoach/internal/errors"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounceDelay = time.Second

// PromptWatcher watches prompt template files and the questionnaire catalog
// and calls reload for each file that changed. Editors often write several
// events per save, so reloads are debounced.
type PromptWatcher struct {
	mu sync.RWMutex

	files       []string
	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	reload func(path string)
	logger *errors.Logger

	running bool
}

// NewPromptWatcher creates a watcher for files. Relative paths are resolved
// against the working directory.
func NewPromptWatcher(files []string, debounceDelay time.Duration, reload func(path string), logger *errors.Logger) (*PromptWatcher, error) {
	if debounceDelay <= 0 {
		debounceDelay = defaultDebounceDelay
	}

	var absFiles []string
	for _, file := range files {
		if file == "" {
			continue
		}
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		if !slices.Contains(absFiles, abs) {
			absFiles = append(absFiles, abs)
		}
	}

	return &PromptWatcher{
		files:         absFiles,
		lastModTime:   make(map[string]time.Time),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		reload:        reload,
		logger:        logger,
	}, nil
}

// Start begins watching. Watching nothing is not an error.
func (pw *PromptWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.running {
		return fmt.Errorf("prompt watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	pw.fsWatcher = watcher
	pw.recordModTimes()

	for _, file := range pw.files {
		if err := pw.addFileToWatcher(file); err != nil {
			pw.logger.Warn("Failed to watch prompt file", "file", file, "error", err.Error())
		}
	}

	pw.running = true
	go pw.watchLoop()

	pw.logger.Info("Prompt file watcher started",
		"files", pw.files,
		"debounce_delay", pw.debounceDelay)
	return nil
}

// Stop stops the watcher
func (pw *PromptWatcher) Stop() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if !pw.running {
		return nil
	}

	close(pw.stopChan)
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.running = false

	if err := pw.fsWatcher.Close(); err != nil {
		pw.logger.LogError(err, "Failed to close file system watcher")
		return err
	}

	pw.logger.Info("Prompt file watcher stopped")
	return nil
}

// addFileToWatcher watches the file's directory so atomic replaces
// (write to temp, rename over) are seen
func (pw *PromptWatcher) addFileToWatcher(file string) error {
	dir := filepath.Dir(file)
	if err := pw.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	return nil
}

func (pw *PromptWatcher) recordModTimes() {
	for _, file := range pw.files {
		if stat, err := os.Stat(file); err == nil {
			pw.lastModTime[file] = stat.ModTime()
		}
	}
}

// changedFiles returns the watched files whose modification time moved
// since the last check. Deleted files are skipped until they reappear.
func (pw *PromptWatcher) changedFiles() []string {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	var changed []string
	for _, file := range pw.files {
		stat, err := os.Stat(file)
		if err != nil {
			delete(pw.lastModTime, file)
			continue
		}
		lastMod, seen := pw.lastModTime[file]
		if !seen || !stat.ModTime().Equal(lastMod) {
			pw.lastModTime[file] = stat.ModTime()
			changed = append(changed, file)
		}
	}
	return changed
}

func (pw *PromptWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-pw.fsWatcher.Events:
			if !ok {
				return
			}
			if pw.shouldProcessEvent(event) {
				pw.scheduleReload()
			}

		case err, ok := <-pw.fsWatcher.Errors:
			if !ok {
				return
			}
			pw.logger.LogError(err, "File watcher error")

		case <-pw.reloadChan:
			for _, file := range pw.changedFiles() {
				pw.logger.Info("Prompt file changed, reloading", "file", file)
				pw.reload(file)
			}

		case <-pw.stopChan:
			return
		}
	}
}

func (pw *PromptWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || !slices.Contains(pw.files, name) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (pw *PromptWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, func() {
		select {
		case pw.reloadChan <- struct{}{}:
		default:
		}
	})
}

// IsRunning returns whether the watcher is currently running
func (pw *PromptWatcher) IsRunning() bool {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.running
}

// GetWatchedFiles returns the absolute paths being watched
func (pw *PromptWatcher) GetWatchedFiles() []string {
	return slices.Clone(pw.files)
}

// reloadFile routes a changed path to the prompt store or the catalog
func (s *Server) reloadFile(path string) {
	if catalog := s.components.Catalog; catalog != nil && catalog.Path() != "" {
		if abs, err := filepath.Abs(catalog.Path()); err == nil && abs == path {
			if err := catalog.Reload(); err != nil {
				s.Logger.LogError(err, "Failed to reload questionnaire, keeping previous questions", "file", path)
				return
			}
			s.Logger.Info("Questionnaire reloaded", "file", path, "questions", len(catalog.Questions()))
			return
		}
	}

	n, err := s.AppConfig.Prompts.Reload(path)
	if err != nil {
		s.Logger.LogError(err, "Failed to reload prompt file, keeping previous prompts", "file", path)
		return
	}
	s.Logger.Info("Prompts reloaded", "file", path, "slots", n)
}

// startPromptWatcher watches every prompt file and the questionnaire catalog
func (s *Server) startPromptWatcher() error {
	cfg := s.AppConfig.Server.Reload.Prompts
	if !cfg.Enabled {
		return nil
	}

	files := s.AppConfig.Prompts.Files()
	if s.components.Catalog != nil {
		files = append(files, s.components.Catalog.Path())
	}

	watcher, err := NewPromptWatcher(files, cfg.DebounceDelay, s.reloadFile, s.Logger)
	if err != nil {
		return err
	}
	if len(watcher.GetWatchedFiles()) == 0 {
		s.Logger.Debug("Prompt reload enabled but no prompt files are configured")
		return nil
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	s.promptWatcher = watcher
	return nil
}
