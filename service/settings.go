package service

import "context"

// SettingsSource supplies site settings that can change between imports.
type SettingsSource interface {
	PlaceholderImage(ctx context.Context) string
}

// StaticSettings serves settings fixed at startup from config.
type StaticSettings struct {
	Placeholder string
}

func (s StaticSettings) PlaceholderImage(ctx context.Context) string {
	return s.Placeholder
}
