// Package profile holds best-effort player soft state inferred from chat
// text. Extraction is heuristic and swappable; the turn pipeline must
// tolerate profiles that are empty, wrong, or absent.
package profile

import (
	"regexp"
	"strings"
)

// Profile is inferred player state. Fields merge non-destructively: a new
// non-empty value overwrites the old one, empty values never erase.
type Profile struct {
	Name  string `json:"name,omitempty"`
	Class string `json:"class,omitempty"`
}

// Merge folds other into p, keeping existing values where other is empty.
func (p *Profile) Merge(other Profile) {
	if other.Name != "" {
		p.Name = other.Name
	}
	if other.Class != "" {
		p.Class = other.Class
	}
}

// Empty reports whether no attribute has been inferred.
func (p *Profile) Empty() bool {
	return p.Name == "" && p.Class == ""
}

// Extractor infers profile attributes from one player utterance.
type Extractor interface {
	Extract(text string) Profile
}

// knownClasses are the character classes the regex extractor recognizes.
var knownClasses = []string{
	"warrior", "wizard", "mage", "rogue", "ranger", "cleric",
	"bard", "paladin", "druid", "monk", "barbarian", "sorcerer",
}

var (
	namePattern  = regexp.MustCompile(`(?i)\bmy name is ([A-Za-z][A-Za-z'-]*)`)
	callPattern  = regexp.MustCompile(`(?i)\bcall me ([A-Za-z][A-Za-z'-]*)`)
	classPattern = regexp.MustCompile(`(?i)\bi(?:'m| am) (?:a |an )?([A-Za-z]+)`)
)

// RegexExtractor infers name and class from common English phrasings
// ("my name is X", "call me X", "I am a wizard"). Inherently best-effort.
type RegexExtractor struct{}

// NewRegexExtractor creates the default heuristic extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract scans text for name and class declarations.
func (e *RegexExtractor) Extract(text string) Profile {
	var p Profile

	if m := namePattern.FindStringSubmatch(text); m != nil {
		p.Name = m[1]
	} else if m := callPattern.FindStringSubmatch(text); m != nil {
		p.Name = m[1]
	}

	if m := classPattern.FindStringSubmatch(text); m != nil {
		candidate := strings.ToLower(m[1])
		for _, class := range knownClasses {
			if candidate == class {
				p.Class = class
				break
			}
		}
	}

	return p
}

// NopExtractor disables profile inference.
type NopExtractor struct{}

// Extract always returns an empty profile.
func (NopExtractor) Extract(string) Profile {
	return Profile{}
}

// Ensure extractors implement Extractor
var (
	_ Extractor = (*RegexExtractor)(nil)
	_ Extractor = NopExtractor{}
)
