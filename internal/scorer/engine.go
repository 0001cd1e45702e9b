package scorer

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lureiq/internal/model"
)

// ErrConditionsIncomplete is returned when clarity or cover is unset.
var ErrConditionsIncomplete = eris.New("scorer: clarity and cover are required")

// Tiebreaker picks an index in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type Tiebreaker interface {
	IntN(n int) int
}

// LureScore is one lure's final score.
type LureScore struct {
	Lure  string  `json:"lure"`
	Score float64 `json:"score"`
}

// Engine scores conditions against a catalog. It is safe for concurrent use
// as long as the Tiebreaker is.
type Engine struct {
	catalog   Catalog
	rules     []Rule
	overrides map[string]float64
	tiebreak  Tiebreaker
}

// Option configures an Engine.
type Option func(*Engine)

// WithOverrides replaces base weights for the named lures. Names not in the
// catalog are ignored.
func WithOverrides(weights map[string]float64) Option {
	return func(e *Engine) {
		e.overrides = weights
	}
}

// WithTiebreaker sets the source used to choose among exactly tied lures.
// Without one the earliest catalog entry wins.
func WithTiebreaker(t Tiebreaker) Option {
	return func(e *Engine) {
		e.tiebreak = t
	}
}

// WithRules replaces the built-in rule table.
func WithRules(rules []Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// NewEngine creates an Engine. A nil catalog uses DefaultCatalog.
func NewEngine(catalog Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	e := &Engine{
		catalog: catalog,
		rules:   DefaultRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// Score picks the best lure for the conditions.
func (e *Engine) Score(c model.Conditions) (model.ScoredRecommendation, error) {
	return Score(c, e.catalog, e.overrides, e.rules, e.tiebreak)
}

// Rank returns every lure's score, highest first.
func (e *Engine) Rank(c model.Conditions) ([]LureScore, error) {
	scores, err := accumulate(c, e.catalog, e.overrides, e.rules)
	if err != nil {
		return nil, err
	}
	ranked := make([]LureScore, len(e.catalog))
	for i, l := range e.catalog {
		ranked[i] = LureScore{Lure: l.Name, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// Score is the pure scoring function. Randomness only enters through tb and
// only when two or more lures share the top score.
func Score(c model.Conditions, catalog Catalog, overrides map[string]float64, rules []Rule, tb Tiebreaker) (model.ScoredRecommendation, error) {
	scores, err := accumulate(c, catalog, overrides, rules)
	if err != nil {
		return model.ScoredRecommendation{}, err
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	var tied []int
	for i, s := range scores {
		if s == best {
			tied = append(tied, i)
		}
	}

	winner := tied[0]
	if len(tied) > 1 && tb != nil {
		winner = tied[tb.IntN(len(tied))]
	}

	lure := catalog[winner]
	return model.ScoredRecommendation{
		Lure:     lure.Name,
		Color:    ColorFor(*c.Clarity),
		Retrieve: lure.Retrieve,
		Depth:    lure.Depth,
	}, nil
}

// accumulate seeds every lure with its base (or override) weight and applies
// all matching rules. The result is indexed like catalog.
func accumulate(c model.Conditions, catalog Catalog, overrides map[string]float64, rules []Rule) ([]float64, error) {
	if !c.Ready() {
		return nil, ErrConditionsIncomplete
	}
	if len(catalog) == 0 {
		return nil, eris.New("scorer: empty catalog")
	}

	index := make(map[string]int, len(catalog))
	scores := make([]float64, len(catalog))
	for i, l := range catalog {
		index[l.Name] = i
		scores[i] = l.BaseWeight
		if w, ok := overrides[l.Name]; ok {
			scores[i] = w
		}
	}

	in := newInput(c)
	for _, r := range rules {
		if !r.When(in) {
			continue
		}
		for _, dl := range r.Deltas {
			if i, ok := index[dl.Lure]; ok {
				scores[i] += dl.Amount
			}
		}
	}
	return scores, nil
}
