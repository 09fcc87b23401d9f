// Package cards defines the vocabulary card model for the tesoro story game
// and the detector that decides which cards a learner actually used in an
// utterance.
//
// A card is a target the learner should work into their sentence: a single
// word, a phrase, a grammar rule ("use subjunctive"), an image concept, or a
// constraint ("make the sentence negative"). Cards are read-only during a
// turn — they are dealt at session start and only ever referenced by id.
package cards

import (
	"math/rand/v2"
)

// Type classifies what kind of target a card represents.
type Type string

const (
	TypeWord       Type = "word"
	TypePhrase     Type = "phrase"
	TypeGrammar    Type = "grammar"
	TypeImage      Type = "image"
	TypeConstraint Type = "constraint"
)

// IsValid reports whether t is a recognised card type.
func (t Type) IsValid() bool {
	switch t {
	case TypeWord, TypePhrase, TypeGrammar, TypeImage, TypeConstraint:
		return true
	}
	return false
}

// Card is a single vocabulary/grammar target. Value is the matchable text;
// DisplayText is what the UI shows (falls back to Value when empty).
type Card struct {
	ID          string `json:"id"`
	Type        Type   `json:"type"`
	Value       string `json:"value"`
	DisplayText string `json:"display_text,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Points      int    `json:"points,omitempty"`
}

// MatchText returns the text used for usage detection: Value, falling back
// to DisplayText. May be empty for purely visual cards.
func (c Card) MatchText() string {
	if c.Value != "" {
		return c.Value
	}
	return c.DisplayText
}

// Catalog returns the built-in Spanish starter deck. The slice is freshly
// allocated on every call so callers may shuffle or slice it freely.
func Catalog() []Card {
	return []Card{
		{ID: "c_camino", Type: TypeWord, Value: "camino", DisplayText: "camino", Points: 5},
		{ID: "c_cesta", Type: TypeImage, Value: "basket", DisplayText: "basket", Points: 4},
		{ID: "c_lobo", Type: TypeWord, Value: "lobo", DisplayText: "lobo", Points: 6},
		{ID: "c_noche", Type: TypePhrase, Value: "por la noche", DisplayText: "por la noche", Points: 5},
		{ID: "c_subj", Type: TypeGrammar, Value: "subjunctive", DisplayText: "use subjunctive", Points: 8},
		{ID: "c_arbol", Type: TypeWord, Value: "árbol", DisplayText: "árbol", Points: 4},
		{ID: "c_flor", Type: TypeWord, Value: "flor", DisplayText: "flor", Points: 3},
		{ID: "c_neg", Type: TypeConstraint, Value: "negative", DisplayText: "make sentence negative", Points: 7},
		{ID: "c_llama", Type: TypeWord, Value: "llama", DisplayText: "llama", Points: 3},
	}
}

// Deal shuffles the catalog and returns up to n active cards for a new
// session.
func Deal(n int) []Card {
	deck := Catalog()
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	if n > len(deck) {
		n = len(deck)
	}
	return deck[:n]
}
