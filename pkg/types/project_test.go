package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(s *ProjectSettings)
		wantErr bool
	}{
		{name: "defaults are valid", modify: func(*ProjectSettings) {}},
		{name: "serif white", modify: func(s *ProjectSettings) { s.ContentFont = FontNotoSerif; s.Theme = ThemeWhite }},
		{name: "unknown font", modify: func(s *ProjectSettings) { s.ContentFont = "Comic" }, wantErr: true},
		{name: "unknown theme", modify: func(s *ProjectSettings) { s.Theme = "sepia" }, wantErr: true},
		{name: "width too small", modify: func(s *ProjectSettings) { s.ContentWidth = 10 }, wantErr: true},
		{name: "width too large", modify: func(s *ProjectSettings) { s.ContentWidth = 5000 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings("s1", "p1")
			tt.modify(s)
			err := s.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings("s1", "p1")
	assert.Equal(t, FontNotoSans, s.ContentFont)
	assert.Equal(t, DefaultContentWidth, s.ContentWidth)
	assert.Equal(t, ThemeDark, s.Theme)
	assert.Equal(t, "p1", s.ProjectID)
}

func TestDocumentText(t *testing.T) {
	var d Document
	assert.Equal(t, "", d.Text())
	d.SetText("brave and \"quiet\"")
	assert.Equal(t, "brave and \"quiet\"", d.Text())
	d.Content = []byte(`{"ops":[{"insert":"Once"}]}`)
	assert.Equal(t, `{"ops":[{"insert":"Once"}]}`, d.Text())
}

func TestParseRelationKind(t *testing.T) {
	k, err := ParseRelationKind("episode-place")
	require.NoError(t, err)
	assert.Equal(t, RelationEpisodePlace, k)
	_, err = ParseRelationKind("place-place")
	assert.ErrorIs(t, err, ErrInvalidRelationType)
}
