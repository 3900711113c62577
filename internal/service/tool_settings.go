package service

import (
	"encoding/json"
	"fmt"
	"log"

	"annotator/internal/domain"
	"annotator/internal/ink"
	"annotator/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Tool Settings Persistence
// ─────────────────────────────────────────────────────────────
//
// Saves and restores the toolbar state (active tool, colors, widths)
// between sessions. Stored in SQLite as one JSON row in app_settings.

// ToolSettingsService persists tool settings between sessions.
type ToolSettingsService struct {
	db *storage.DB
}

// NewToolSettingsService creates a ToolSettingsService. A nil db keeps
// settings in memory only.
func NewToolSettingsService(db *storage.DB) *ToolSettingsService {
	return &ToolSettingsService{db: db}
}

const settingToolSettings = "tool_settings"

// Load returns the saved settings, or defaults.
func (s *ToolSettingsService) Load() domain.ToolSettings {
	if s == nil || s.db == nil {
		return domain.DefaultToolSettings()
	}
	raw, ok, err := s.db.GetSetting(settingToolSettings)
	if err != nil {
		log.Printf("tool settings: load failed: %v", err)
		return domain.DefaultToolSettings()
	}
	if !ok {
		return domain.DefaultToolSettings()
	}
	var ts domain.ToolSettings
	if err := json.Unmarshal([]byte(raw), &ts); err != nil {
		log.Printf("tool settings: ignoring unreadable value: %v", err)
		return domain.DefaultToolSettings()
	}
	return ink.NormalizeSettings(ts)
}

// Save persists settings after normalizing them.
func (s *ToolSettingsService) Save(ts domain.ToolSettings) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("tool settings: no db")
	}
	data, err := json.Marshal(ink.NormalizeSettings(ts))
	if err != nil {
		return fmt.Errorf("encode tool settings: %w", err)
	}
	return s.db.SetSetting(settingToolSettings, string(data))
}
