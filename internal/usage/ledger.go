// Package usage keeps the persistent request ledger and the governor that
// approximates the remote requests-per-minute and requests-per-day limits.
package usage

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// HistoryKey is the settings key holding the JSON-encoded ledger.
const HistoryKey = "gemini_usage_history"

// Record is one completed, successfully billed remote call.
type Record struct {
	Timestamp int64 `json:"timestamp"` // ms since epoch
	Tokens    int   `json:"tokens"`
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Store persists the whole ledger. Load never fails: a missing or unreadable
// ledger is an empty ledger.
type Store interface {
	Load() []Record
	Save(records []Record) error
}

// Settings is the key/value backend the ledger is stored in.
type Settings interface {
	LookupSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
}

// SettingsStore keeps the ledger as a JSON array under HistoryKey.
type SettingsStore struct {
	settings Settings
}

// NewSettingsStore creates a SettingsStore.
func NewSettingsStore(settings Settings) *SettingsStore {
	return &SettingsStore{settings: settings}
}

// Load returns the persisted records in the order they were saved.
func (s *SettingsStore) Load() []Record {
	raw, found, err := s.settings.LookupSetting(HistoryKey)
	if err != nil {
		log.Warnf("usage.Load: %v", err)
		return []Record{}
	}
	if !found || raw == "" {
		return []Record{}
	}
	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		log.Warnf("usage.Load: decode ledger: %v", err)
		return []Record{}
	}
	if records == nil {
		records = []Record{}
	}
	return records
}

// Save overwrites the persisted ledger.
func (s *SettingsStore) Save(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("usage.Save: encode: %w", err)
	}
	if err := s.settings.SetSetting(HistoryKey, string(b)); err != nil {
		return fmt.Errorf("usage.Save: %w", err)
	}
	return nil
}
