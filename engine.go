package abac

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy is returned by NewStrategy for an unrecognized name
var ErrUnknownStrategy = errors.New("unknown enumeration strategy")

// Match is one permitted (user, resource) pair produced by enumeration
type Match struct {
	UserID     string `json:"user"`
	ResourceID string `json:"resource"`
}

// Strategy enumerates every (user, resource) pair a rule permits. All
// strategies produce the same set of matches for the same inputs; they differ
// only in how much work they skip getting there. maxUsers bounds enumeration
// to the first maxUsers users of the policy (non-positive means all users).
// Emission order is unspecified.
type Strategy[N comparable, V Value[V]] interface {
	Name() string
	Enumerate(p *Policy[N, V], rule *Rule[N, V], maxUsers int, emit func(Match)) error
}

// RulePlanner is implemented by strategies that can order a policy's rules
// for evaluation. The analyzer consults it when walking every rule of a
// policy so cheap rules report results first.
type RulePlanner[N comparable, V Value[V]] interface {
	PlanRules(p *Policy[N, V]) []int
}

// Strategy names accepted by NewStrategy
const (
	StrategyNaive    = "naive"
	StrategyOrdered  = "ordered"
	StrategyIndexed  = "indexed"
	StrategyBitmask  = "bitmask"
	StrategyCached   = "cached"
	StrategyParallel = "parallel"
)

// StrategyNames lists every registered strategy in presentation order
func StrategyNames() []string {
	return []string{StrategyNaive, StrategyOrdered, StrategyIndexed, StrategyBitmask, StrategyCached, StrategyParallel}
}

// NewStrategy builds a strategy by name. The cached strategy holds mutable
// per-instance memo state and must not be shared across goroutines; every
// other strategy is stateless.
func NewStrategy[N comparable, V Value[V]](name string) (Strategy[N, V], error) {
	switch name {
	case StrategyNaive:
		return NaiveStrategy[N, V]{}, nil
	case StrategyOrdered:
		return OrderedStrategy[N, V]{}, nil
	case StrategyIndexed:
		return IndexedStrategy[N, V]{}, nil
	case StrategyBitmask:
		return BitmaskStrategy[N, V]{}, nil
	case StrategyCached:
		return NewCachedStrategy[N, V](), nil
	case StrategyParallel:
		return ParallelStrategy[N, V]{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// NewConfiguredStrategy builds the strategy a config names and applies the
// config's strategy knobs. Workers only affects the parallel strategy.
func NewConfiguredStrategy[N comparable, V Value[V]](cfg *Config) (Strategy[N, V], error) {
	if cfg.Strategy == StrategyParallel {
		return ParallelStrategy[N, V]{Workers: cfg.Workers}, nil
	}
	return NewStrategy[N, V](cfg.Strategy)
}

// EnumerateMatches collects every match the rule permits over the policy
func EnumerateMatches[N comparable, V Value[V]](s Strategy[N, V], p *Policy[N, V], rule *Rule[N, V], maxUsers int) ([]Match, error) {
	var out []Match
	err := s.Enumerate(p, rule, maxUsers, func(m Match) {
		out = append(out, m)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountMatches counts matches without materializing them
func CountMatches[N comparable, V Value[V]](s Strategy[N, V], p *Policy[N, V], rule *Rule[N, V], maxUsers int) (int, error) {
	n := 0
	err := s.Enumerate(p, rule, maxUsers, func(Match) { n++ })
	if err != nil {
		return 0, err
	}
	return n, nil
}
