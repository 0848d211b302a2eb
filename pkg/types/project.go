package types

import (
	"fmt"
	"time"
)

// Project is the top-level container for a writing project.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LastModified time.Time `json:"lastModifiedDate"`
	Theme        string    `json:"theme"`
}

// ProjectThemes is the palette new projects draw their color from.
var ProjectThemes = []string{
	"#B55353", "#81B553", "#537DB5", "#B553B5", "#53A4B5", "#B59B53",
	"#B56E53", "#B5536A", "#5353B5", "#53B59A", "#53B563",
}

// Content fonts.
const (
	FontNotoSans      = "NotoSans"
	FontNotoSerif     = "NotoSerif"
	FontNanumGothic   = "NanumGothic"
	FontNanumMyeongjo = "NanumMyeongjo"
)

// Editor themes.
const (
	ThemeDark  = "dark"
	ThemeWhite = "white"
)

// Settings defaults and bounds.
const (
	DefaultContentWidth = 540
	MinContentWidth     = 240
	MaxContentWidth     = 1600
)

var (
	knownFonts  = map[string]bool{FontNotoSans: true, FontNotoSerif: true, FontNanumGothic: true, FontNanumMyeongjo: true}
	knownThemes = map[string]bool{ThemeDark: true, ThemeWhite: true}
)

// ProjectSettings holds per-project editor preferences.
type ProjectSettings struct {
	ID           string `json:"id"`
	ProjectID    string `json:"projectId"`
	ContentFont  string `json:"contentFont"`
	ContentWidth int    `json:"contentWidth"`
	Theme        string `json:"theme"`
}

// DefaultSettings returns the settings a new project starts with.
func DefaultSettings(id, projectID string) *ProjectSettings {
	return &ProjectSettings{
		ID:           id,
		ProjectID:    projectID,
		ContentFont:  FontNotoSans,
		ContentWidth: DefaultContentWidth,
		Theme:        ThemeDark,
	}
}

// Validate checks font, width and theme. Errors wrap ErrInvalidSettings.
func (s *ProjectSettings) Validate() error {
	if !knownFonts[s.ContentFont] {
		return fmt.Errorf("content font %q: %w", s.ContentFont, ErrInvalidSettings)
	}
	if s.ContentWidth < MinContentWidth || s.ContentWidth > MaxContentWidth {
		return fmt.Errorf("content width %d outside %d..%d: %w", s.ContentWidth, MinContentWidth, MaxContentWidth, ErrInvalidSettings)
	}
	if !knownThemes[s.Theme] {
		return fmt.Errorf("theme %q: %w", s.Theme, ErrInvalidSettings)
	}
	return nil
}
