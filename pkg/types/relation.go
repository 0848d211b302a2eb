package types

import "fmt"

// RelationKind names one of the four relation stores.
type RelationKind string

// Relation kinds. The endpoints are written from-to.
const (
	RelationCharacterCharacter RelationKind = "character-character"
	RelationCharacterPlace     RelationKind = "character-place"
	RelationEpisodeCharacter   RelationKind = "episode-character"
	RelationEpisodePlace       RelationKind = "episode-place"
)

// RelationKinds lists every relation kind.
var RelationKinds = []RelationKind{
	RelationCharacterCharacter,
	RelationCharacterPlace,
	RelationEpisodeCharacter,
	RelationEpisodePlace,
}

// ParseRelationKind converts user input into a RelationKind.
func ParseRelationKind(s string) (RelationKind, error) {
	for _, k := range RelationKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidRelationType)
}

// Relation links two documents. FromID and ToID hold the document ids of the
// kind's first and second endpoint.
type Relation struct {
	ID       string       `json:"id"`
	Kind     RelationKind `json:"kind"`
	FromID   string       `json:"fromId"`
	ToID     string       `json:"toId"`
	Relation string       `json:"relation"`
	Memo     string       `json:"memo"`
}

// HydratedRelation is a relation with both endpoint documents resolved.
type HydratedRelation struct {
	Relation
	From *Document `json:"from"`
	To   *Document `json:"to"`
}
