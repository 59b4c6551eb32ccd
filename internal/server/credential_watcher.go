package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"careercoach/internal/config"
	"careercoach/internal/errors"
)

const defaultCredentialPollInterval = 5 * time.Minute

// KeyRotator accepts a new model API key. *ai.Services implements it.
type KeyRotator interface {
	RotateAPIKey(apiKey string)
}

// CredentialWatcher polls the Vault entry holding the Gemini key and hands a
// new key to rotate whenever the secret version increases
type CredentialWatcher struct {
	mu sync.RWMutex

	client       config.SecretReader
	secretPath   string
	pollInterval time.Duration
	rotate       func(apiKey string)
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	rotations   int
	lastError   string
	lastChecked time.Time
}

func NewCredentialWatcher(client config.SecretReader, secretPath string, pollInterval time.Duration, rotate func(apiKey string), logger *errors.Logger) *CredentialWatcher {
	if pollInterval <= 0 {
		pollInterval = defaultCredentialPollInterval
	}
	return &CredentialWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		rotate:       rotate,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start records the current secret version and begins polling. The key at
// that version is assumed to be the one already in use.
func (cw *CredentialWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return fmt.Errorf("credential watcher is already running")
	}

	if secret, err := cw.client.GetSecretV2(cw.secretPath); err == nil && secret != nil {
		cw.lastVersion = secret.Version
	} else if err != nil {
		cw.logger.Warn("Could not read initial credential version", "path", cw.secretPath, "error", err.Error())
	}

	cw.running = true
	go cw.pollLoop()
	cw.logger.Info("Credential watcher started", "secret_path", cw.secretPath, "poll_interval", cw.pollInterval)
	return nil
}

// Stop stops polling
func (cw *CredentialWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.running {
		return nil
	}
	close(cw.stopChan)
	cw.running = false
	cw.logger.Info("Credential watcher stopped")
	return nil
}

func (cw *CredentialWatcher) pollLoop() {
	ticker := time.NewTicker(cw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := cw.poll(); err != nil {
				cw.logger.LogError(err, "Failed to check Vault for a rotated API key")
			}
		case <-cw.stopChan:
			return
		}
	}
}

// poll reads the secret once and rotates the key when its version moved.
// It reports whether a rotation happened.
func (cw *CredentialWatcher) poll() (bool, error) {
	key, version, changed, err := cw.checkForUpdates()

	cw.mu.Lock()
	cw.lastChecked = time.Now()
	if err != nil {
		cw.lastError = err.Error()
		cw.mu.Unlock()
		return false, err
	}
	cw.lastError = ""
	if !changed {
		cw.mu.Unlock()
		return false, nil
	}
	cw.lastVersion = version
	cw.rotations++
	cw.mu.Unlock()

	cw.logger.Info("Gemini API key rotated from Vault", "version", version, "key", config.MaskSecret(key))
	cw.rotate(key)
	return true, nil
}

// checkForUpdates returns the key stored at a newer version, if there is one
func (cw *CredentialWatcher) checkForUpdates() (key string, version int64, changed bool, err error) {
	secret, err := cw.client.GetSecretV2(cw.secretPath)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return "", 0, false, fmt.Errorf("no secret found at %s", cw.secretPath)
	}

	cw.mu.RLock()
	last := cw.lastVersion
	cw.mu.RUnlock()
	if secret.Version <= last {
		return "", secret.Version, false, nil
	}

	key, _ = secret.Data[config.VaultKeyGemini].(string)
	key = strings.TrimSpace(key)
	if key == "" {
		return "", secret.Version, false, fmt.Errorf("secret %s version %d has no %q value",
			cw.secretPath, secret.Version, config.VaultKeyGemini)
	}
	return key, secret.Version, true, nil
}

// Status reports the watcher state for the health endpoint
func (cw *CredentialWatcher) Status() map[string]any {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	status := map[string]any{
		"running":       cw.running,
		"poll_interval": cw.pollInterval.String(),
		"secret_path":   cw.secretPath,
		"last_version":  cw.lastVersion,
		"rotations":     cw.rotations,
	}
	if !cw.lastChecked.IsZero() {
		status["last_checked"] = cw.lastChecked
	}
	if cw.lastError != "" {
		status["last_error"] = cw.lastError
	}
	return status
}

// startCredentialWatcher polls Vault for a rotated Gemini key when enabled
func (s *Server) startCredentialWatcher() error {
	reload := s.AppConfig.Server.Reload.Credentials
	vault := s.AppConfig.Vault
	if !reload.Enabled || !vault.Enabled || vault.Secrets.GeminiKey == "" {
		return nil
	}

	rotator, ok := s.components.AI.(KeyRotator)
	if !ok {
		s.Logger.Warn("Credential reload enabled but the AI backend cannot rotate keys")
		return nil
	}

	client, err := config.NewVaultClient(vault, s.Logger)
	if err != nil {
		return fmt.Errorf("failed to create vault client for credential watcher: %w", err)
	}
	if client == nil {
		return nil
	}

	watcher := NewCredentialWatcher(client, vault.Secrets.GeminiKey, reload.PollInterval, rotator.RotateAPIKey, s.Logger)
	if err := watcher.Start(); err != nil {
		return err
	}
	s.credentialWatcher = watcher
	return nil
}
