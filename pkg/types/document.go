package types

import "encoding/json"

// Document is the content record behind a hierarchy leaf. Content is opaque
// to storage: a JSON string for characters, places and episodes and a
// rich-text delta object for manuscripts.
type Document struct {
	ID          string          `json:"id"`
	HierarchyID string          `json:"hierarchyId"`
	Name        string          `json:"name"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Text returns the content as a string when it is a JSON string, and the raw
// JSON text otherwise.
func (d *Document) Text() string {
	if len(d.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.Content, &s); err == nil {
		return s
	}
	return string(d.Content)
}

// SetText stores s as a JSON string content.
func (d *Document) SetText(s string) {
	b, _ := json.Marshal(s)
	d.Content = b
}
