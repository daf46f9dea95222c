package domain

import (
	"fmt"
	"strings"
)

// CatalogKey identifies one catalog: the ordered games of a topic for an age tier.
type CatalogKey struct {
	Topic   string
	AgeTier string
}

func (k CatalogKey) String() string {
	return fmt.Sprintf("%s:%s", k.Topic, k.AgeTier)
}

func (k CatalogKey) IsZero() bool {
	return k.Topic == "" && k.AgeTier == ""
}

// ParseCatalogKey parses the canonical "topic:ageTier" form.
func ParseCatalogKey(raw string) (CatalogKey, error) {
	topic, ageTier, ok := strings.Cut(raw, ":")
	if !ok || topic == "" || ageTier == "" || strings.Contains(ageTier, ":") {
		return CatalogKey{}, fmt.Errorf("invalid catalog key %q", raw)
	}
	return CatalogKey{Topic: topic, AgeTier: ageTier}, nil
}

type Difficulty int

const (
	DifficultyEasy Difficulty = iota
	DifficultyMedium
	DifficultyHard
	DifficultyExpert
)

func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	case DifficultyExpert:
		return "expert"
	default:
		return fmt.Sprintf("<invalid difficulty>(%d)", int(d))
	}
}

func ParseDifficulty(raw string) (Difficulty, error) {
	switch raw {
	case "easy":
		return DifficultyEasy, nil
	case "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	case "expert":
		return DifficultyExpert, nil
	default:
		return 0, fmt.Errorf("unknown difficulty %q", raw)
	}
}

// GameDescriptor is the static description of one game in a catalog.
// Index is the sequential unlock position.
type GameDescriptor struct {
	ID          string
	Index       int
	Difficulty  Difficulty
	CoinsReward int
	XPReward    int
	RoutePath   string
	IsSpecial   bool
}
