package eligibility

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultThreshold is the minimum score for an ACCEPTABLE verdict.
const DefaultThreshold = 60

type Verdict string

const (
	Acceptable    Verdict = "ACCEPTABLE"
	NotAcceptable Verdict = "NOT_ACCEPTABLE"
)

type Impact string

const (
	Positive Impact = "positive"
	Negative Impact = "negative"
	Neutral  Impact = "neutral"
)

// ErrMalformedInput is returned when stored answers cannot be read as their schema type.
var ErrMalformedInput = errors.New("eligibility: malformed input")

// Factor is the explanation emitted by a rule that fired.
type Factor struct {
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
	Weight      int    `json:"weight"`
}

// Result is the output of a classification run.
type Result struct {
	Score   int      `json:"score"`
	Verdict Verdict  `json:"result"`
	Reason  string   `json:"reason"`
	Factors []Factor `json:"factors"`
}

// Rule inspects a profile and optionally emits a factor.
type Rule struct {
	Name  string
	Apply func(p Profile) (Factor, bool)
}

// Engine evaluates an ordered rule set. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	schema    Schema
	rules     []Rule
	threshold int
}

type EngineOption func(*Engine)

func WithThreshold(t int) EngineOption {
	return func(e *Engine) { e.threshold = t }
}

func WithRules(rules ...Rule) EngineOption {
	return func(e *Engine) { e.rules = rules }
}

func NewEngine(schema Schema, opts ...EngineOption) *Engine {
	e := &Engine{schema: schema, rules: DefaultRules(), threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Threshold() int { return e.threshold }

// Classify scores the merged answers. The output depends only on fields.
func (e *Engine) Classify(fields map[string]interface{}) (Result, error) {
	p, err := e.profile(fields)
	if err != nil {
		return Result{}, err
	}

	res := Result{Factors: []Factor{}}
	for _, r := range e.rules {
		f, ok := r.Apply(p)
		if !ok {
			continue
		}
		res.Score += f.Weight
		res.Factors = append(res.Factors, f)
	}

	res.Verdict = NotAcceptable
	if res.Score >= e.threshold && len(res.Factors) > 0 {
		res.Verdict = Acceptable
	}
	res.Reason = summarize(res.Verdict, res.Factors)
	return res, nil
}

// summarize names the two strongest factors. Ties keep rule order.
func summarize(v Verdict, factors []Factor) string {
	if len(factors) == 0 {
		return "Not enough information to assess eligibility."
	}
	ranked := make([]Factor, 0, len(factors))
	for _, f := range factors {
		if f.Weight != 0 {
			ranked = append(ranked, f)
		}
	}
	if len(ranked) == 0 {
		return fmt.Sprintf("%s: no weighted factors applied.", v)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return abs(ranked[i].Weight) > abs(ranked[j].Weight)
	})
	if len(ranked) > 2 {
		ranked = ranked[:2]
	}
	parts := make([]string, len(ranked))
	for i, f := range ranked {
		parts[i] = f.Description
	}
	return fmt.Sprintf("%s: %s.", v, strings.Join(parts, "; "))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Profile is the typed view of the answers the rules read. Nil means unanswered.
type Profile struct {
	Age                *int
	Gender             string
	MedicarePlan       string
	HasColorblindness  *bool
	FamilyVisionLoss   *bool
	GeneticTestConsent *bool
	Smoker             *bool
	MedicalHistory     []string
}

func (e *Engine) profile(fields map[string]interface{}) (Profile, error) {
	var p Profile
	get := func(name string) (interface{}, bool, error) {
		raw, ok := fields[name]
		if !ok || raw == nil {
			return nil, false, nil
		}
		f, known := e.schema.Lookup(name)
		if !known {
			return nil, false, nil
		}
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		return v, true, nil
	}
	boolPtr := func(name string) (*bool, error) {
		v, ok, err := get(name)
		if err != nil || !ok {
			return nil, err
		}
		b := v.(bool)
		return &b, nil
	}

	if v, ok, err := get("age"); err != nil {
		return p, err
	} else if ok {
		n := v.(int)
		p.Age = &n
	}
	if v, ok, err := get("gender"); err != nil {
		return p, err
	} else if ok {
		p.Gender = v.(string)
	}
	if v, ok, err := get("medicarePlan"); err != nil {
		return p, err
	} else if ok {
		p.MedicarePlan = v.(string)
	}
	if v, ok, err := get("medicalHistory"); err != nil {
		return p, err
	} else if ok {
		p.MedicalHistory = v.([]string)
	}

	var err error
	if p.HasColorblindness, err = boolPtr("hasColorblindness"); err != nil {
		return p, err
	}
	if p.FamilyVisionLoss, err = boolPtr("familyHistoryOfVisionLoss"); err != nil {
		return p, err
	}
	if p.GeneticTestConsent, err = boolPtr("geneticTestConsent"); err != nil {
		return p, err
	}
	if p.Smoker, err = boolPtr("smoker"); err != nil {
		return p, err
	}
	return p, nil
}
