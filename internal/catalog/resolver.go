package catalog

import (
	_ "embed"
	"fmt"
	"slices"

	"github.com/Amund211/gamegate/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

type bandDefinition struct {
	Difficulty string `yaml:"difficulty"`
	UpTo       *int   `yaml:"upTo"`
	Coins      int    `yaml:"coins"`
	XP         int    `yaml:"xp"`
}

type tierDefinition struct {
	Name     string `yaml:"name"`
	Games    int    `yaml:"games"`
	Specials []int  `yaml:"specials"`
}

type topicDefinition struct {
	Name             string           `yaml:"name"`
	RoutePrefix      string           `yaml:"routePrefix"`
	PlaceholderRoute string           `yaml:"placeholderRoute"`
	Tiers            []tierDefinition `yaml:"tiers"`
}

type definition struct {
	Bands  []bandDefinition  `yaml:"bands"`
	Topics []topicDefinition `yaml:"topics"`
}

type band struct {
	difficulty domain.Difficulty
	upTo       int // -1 for unbounded
	coins      int
	xp         int
}

// Resolver maps a catalog key to its ordered games. Every catalog is built
// once at construction, so Resolve is a pure lookup.
type Resolver struct {
	catalogs map[domain.CatalogKey][]domain.GameDescriptor
	keys     []domain.CatalogKey
}

// NewResolver builds a resolver from the catalog definition compiled into the binary.
func NewResolver() (*Resolver, error) {
	return NewResolverFromYAML(embeddedCatalog)
}

func NewResolverFromYAML(data []byte) (*Resolver, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse catalog definition: %w", err)
	}

	bands, err := parseBands(def.Bands)
	if err != nil {
		return nil, err
	}

	resolver := &Resolver{
		catalogs: make(map[domain.CatalogKey][]domain.GameDescriptor),
		keys:     make([]domain.CatalogKey, 0),
	}

	for _, topic := range def.Topics {
		if topic.Name == "" {
			return nil, fmt.Errorf("topic without name")
		}
		for _, tier := range topic.Tiers {
			key := domain.CatalogKey{Topic: topic.Name, AgeTier: tier.Name}
			if tier.Name == "" {
				return nil, fmt.Errorf("age tier without name in topic %s", topic.Name)
			}
			if _, ok := resolver.catalogs[key]; ok {
				return nil, fmt.Errorf("duplicate catalog %s", key)
			}

			games, err := buildCatalog(key, topic, tier, bands)
			if err != nil {
				return nil, fmt.Errorf("catalog %s: %w", key, err)
			}

			resolver.catalogs[key] = games
			resolver.keys = append(resolver.keys, key)
		}
	}

	return resolver, nil
}

func parseBands(defs []bandDefinition) ([]band, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("no difficulty bands defined")
	}

	bands := make([]band, 0, len(defs))
	previous := -1
	for i, def := range defs {
		difficulty, err := domain.ParseDifficulty(def.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("band %d: %w", i, err)
		}

		upTo := -1
		if def.UpTo != nil {
			upTo = *def.UpTo
			if upTo <= previous {
				return nil, fmt.Errorf("band %d: upTo %d is not increasing", i, upTo)
			}
			previous = upTo
		} else if i != len(defs)-1 {
			return nil, fmt.Errorf("band %d: only the last band may be unbounded", i)
		}

		bands = append(bands, band{
			difficulty: difficulty,
			upTo:       upTo,
			coins:      def.Coins,
			xp:         def.XP,
		})
	}

	if bands[len(bands)-1].upTo != -1 {
		return nil, fmt.Errorf("last band must be unbounded")
	}

	return bands, nil
}

func bandFor(bands []band, index int) band {
	for _, b := range bands {
		if b.upTo == -1 || index <= b.upTo {
			return b
		}
	}
	// parseBands guarantees an unbounded last band
	panic("logic error: no band for index")
}

func buildCatalog(key domain.CatalogKey, topic topicDefinition, tier tierDefinition, bands []band) ([]domain.GameDescriptor, error) {
	if tier.Games <= 0 {
		return nil, fmt.Errorf("games must be positive, got %d", tier.Games)
	}

	specials := make(map[int]bool, len(tier.Specials))
	for _, index := range tier.Specials {
		if index < 0 || index >= tier.Games {
			return nil, fmt.Errorf("special index %d out of range", index)
		}
		specials[index] = true
	}

	games := make([]domain.GameDescriptor, 0, tier.Games)
	for index := range tier.Games {
		b := bandFor(bands, index)
		number := index + 1

		route := topic.PlaceholderRoute
		if specials[index] {
			route = fmt.Sprintf("%s/%s/%d", topic.RoutePrefix, tier.Name, number)
		}

		games = append(games, domain.GameDescriptor{
			ID:          fmt.Sprintf("%s:%03d", key.String(), number),
			Index:       index,
			Difficulty:  b.difficulty,
			CoinsReward: b.coins,
			XPReward:    b.xp,
			RoutePath:   route,
			IsSpecial:   specials[index],
		})
	}

	return games, nil
}

// Resolve returns the ordered games for key. Unknown keys yield an empty catalog.
func (r *Resolver) Resolve(key domain.CatalogKey) []domain.GameDescriptor {
	games, ok := r.catalogs[key]
	if !ok {
		return []domain.GameDescriptor{}
	}
	return slices.Clone(games)
}

func (r *Resolver) Keys() []domain.CatalogKey {
	return slices.Clone(r.keys)
}
