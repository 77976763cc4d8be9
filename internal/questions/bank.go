// Package questions holds the fixed catalog of tactical decision questions and
// the option-impact transform applied to a company's decisions at quarter
// close. The catalog ships embedded in the binary and is immutable after load.
package questions

import (
	_ "embed"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"finsim/internal/sim"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

const catalogSize = 20

// Impact describes how choosing an option perturbs the pending decisions.
// Zero multipliers mean "unchanged"; deltas are additive after the multiplier.
type Impact struct {
	ProductionMultiplier float64 `yaml:"production_multiplier" json:"-"`
	ProductionDelta      float64 `yaml:"production_delta" json:"-"`
	PriceMultiplier      float64 `yaml:"price_multiplier" json:"-"`
	PriceDelta           float64 `yaml:"price_delta" json:"-"`
	MarketingMultiplier  float64 `yaml:"marketing_multiplier" json:"-"`
	MarketingDelta       float64 `yaml:"marketing_delta" json:"-"`
}

type Option struct {
	ID     string `yaml:"id" json:"id"`
	Text   string `yaml:"text" json:"text"`
	Impact Impact `yaml:"impact" json:"-"`
}

type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Options []Option `yaml:"options" json:"options"`
}

// Option returns the question's option with the given id.
func (q Question) Option(optionID string) (Option, bool) {
	for _, o := range q.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return Option{}, false
}

// Bank is the loaded catalog plus the random source used for selection. The
// source is injected so tests can pin it and assert exact picks.
type Bank struct {
	mu        sync.Mutex
	rand      *mathrand.Rand
	questions []Question
	index     map[string]Question
}

// Load parses the embedded catalog. A nil rng falls back to a time-seeded one.
func Load(rng *mathrand.Rand) (*Bank, error) {
	if rng == nil {
		rng = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	}
	var doc struct {
		Questions []Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse question catalog: %w", err)
	}
	if len(doc.Questions) != catalogSize {
		return nil, fmt.Errorf("question catalog has %d questions, want %d", len(doc.Questions), catalogSize)
	}
	index := make(map[string]Question, len(doc.Questions))
	for _, q := range doc.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question catalog entry missing id")
		}
		if len(q.Options) != 3 {
			return nil, fmt.Errorf("question %s has %d options, want 3", q.ID, len(q.Options))
		}
		if _, dup := index[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %s", q.ID)
		}
		index[q.ID] = q
	}
	return &Bank{
		rand:      rng,
		questions: doc.Questions,
		index:     index,
	}, nil
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// Get looks a question up by id.
func (b *Bank) Get(id string) (Question, bool) {
	q, ok := b.index[id]
	return q, ok
}

// Pick selects a question uniformly at random, skipping the excluded ids.
// When every question is excluded the whole catalog is back in play.
func (b *Bank) Pick(exclude []string) Question {
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}
	available := make([]Question, 0, len(b.questions))
	for _, q := range b.questions {
		if _, skip := excluded[q.ID]; !skip {
			available = append(available, q)
		}
	}
	if len(available) == 0 {
		available = b.questions
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return available[b.rand.Intn(len(available))]
}

// ApplyImpact returns a new Decisions value with the option's deltas applied,
// clamped so no field goes negative. The input is never mutated.
func ApplyImpact(d sim.Decisions, o Option) sim.Decisions {
	return sim.Decisions{
		Production: applyField(d.Production, o.Impact.ProductionMultiplier, o.Impact.ProductionDelta),
		Price:      applyField(d.Price, o.Impact.PriceMultiplier, o.Impact.PriceDelta),
		Marketing:  applyField(d.Marketing, o.Impact.MarketingMultiplier, o.Impact.MarketingDelta),
	}
}

func applyField(value, multiplier, delta float64) float64 {
	if multiplier == 0 {
		multiplier = 1
	}
	out := value*multiplier + delta
	if out < 0 {
		return 0
	}
	return out
}
