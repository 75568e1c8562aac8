// Package credential resolves the Gemini API key: a key saved locally
// overrides the environment default.
package credential

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Key is the settings key holding the user-entered override.
const Key = "gemini_api_key"

// Source tells where the active key came from.
type Source string

const (
	SourceNone     Source = "none"
	SourceOverride Source = "override"
	SourceEnv      Source = "env"
)

// Settings is the key/value backend the override is stored in.
type Settings interface {
	LookupSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

// Provider resolves the active credential.
type Provider struct {
	settings   Settings
	envDefault string
}

// NewProvider creates a Provider. envDefault may be empty.
func NewProvider(settings Settings, envDefault string) *Provider {
	return &Provider{settings: settings, envDefault: strings.TrimSpace(envDefault)}
}

// APIKey returns the active key and whether one is configured.
func (p *Provider) APIKey() (string, bool) {
	key, _ := p.Resolve()
	return key, key != ""
}

// Resolve returns the active key and where it came from.
func (p *Provider) Resolve() (string, Source) {
	v, found, err := p.settings.LookupSetting(Key)
	if err != nil {
		log.Warnf("credential.Resolve: %v", err)
	}
	if found && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), SourceOverride
	}
	if p.envDefault != "" {
		return p.envDefault, SourceEnv
	}
	return "", SourceNone
}

// Save stores the override. An empty key removes it.
func (p *Provider) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		if err := p.settings.DeleteSetting(Key); err != nil {
			return fmt.Errorf("credential.Save: %w", err)
		}
		return nil
	}
	if err := p.settings.SetSetting(Key, key); err != nil {
		return fmt.Errorf("credential.Save: %w", err)
	}
	return nil
}
