package abac

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/abac/logger"
)

// Analyzer runs a strategy over whole policies, memoizes per-rule match sets
// in a ristretto cache, and renders reports. Policies are immutable after
// load, so a cached match set keyed by the policy fingerprint and the rule
// checksum stays valid indefinitely.
type Analyzer[N comparable, V Value[V]] struct {
	strategy Strategy[N, V]
	cache    *ristretto.Cache
	log      logger.Logger
	maxUsers int
	engine   EngineConfig
	noCache  bool
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption[N comparable, V Value[V]] func(*Analyzer[N, V])

// WithLogger sets the analyzer's logger
func WithLogger[N comparable, V Value[V]](l logger.Logger) AnalyzerOption[N, V] {
	return func(a *Analyzer[N, V]) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMaxUsers bounds every enumeration to the first n users
func WithMaxUsers[N comparable, V Value[V]](n int) AnalyzerOption[N, V] {
	return func(a *Analyzer[N, V]) { a.maxUsers = n }
}

// WithoutCache disables match set memoization
func WithoutCache[N comparable, V Value[V]]() AnalyzerOption[N, V] {
	return func(a *Analyzer[N, V]) { a.noCache = true }
}

// WithEngineConfig sizes the analyzer's ristretto cache from config. Zero
// fields keep their defaults.
func WithEngineConfig[N comparable, V Value[V]](cfg EngineConfig) AnalyzerOption[N, V] {
	return func(a *Analyzer[N, V]) { a.engine = cfg }
}

const (
	analyzerCacheCounters = 10_000
	analyzerCacheCapacity = 64 << 20
	analyzerCacheBuffer   = 64
)

// NewAnalyzer builds an analyzer around the given strategy
func NewAnalyzer[N comparable, V Value[V]](s Strategy[N, V], opts ...AnalyzerOption[N, V]) (*Analyzer[N, V], error) {
	a := &Analyzer[N, V]{
		strategy: s,
		log:      logger.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if !a.noCache {
		rc := &ristretto.Config{
			NumCounters: analyzerCacheCounters,
			MaxCost:     analyzerCacheCapacity,
			BufferItems: analyzerCacheBuffer,
		}
		if a.engine.RistrettoNumCounter > 0 {
			rc.NumCounters = a.engine.RistrettoNumCounter
		}
		if a.engine.RistrettoMaxCost > 0 {
			rc.MaxCost = a.engine.RistrettoMaxCost
		}
		if a.engine.RistrettoBuffer > 0 {
			rc.BufferItems = a.engine.RistrettoBuffer
		}
		cache, err := ristretto.NewCache(rc)
		if err != nil {
			return nil, fmt.Errorf("build analyzer cache: %w", err)
		}
		a.cache = cache
	}
	return a, nil
}

// RuleReport is the enumeration result for one rule
type RuleReport struct {
	RuleID      int           `json:"rule_id"`
	Description string        `json:"description,omitempty"`
	Actions     []Action      `json:"actions"`
	Matches     []Match       `json:"matches"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	FromCache   bool          `json:"from_cache"`
}

// PolicyReport aggregates per-rule reports for one policy run
type PolicyReport struct {
	Strategy     string        `json:"strategy"`
	Users        int           `json:"users"`
	Resources    int           `json:"resources"`
	Rules        []RuleReport  `json:"rules"`
	TotalMatches int           `json:"total_matches"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// fingerprint identifies a policy by its entities and rule count. Entity
// attributes fold in through their JSON encoding, so policies sharing entity
// IDs but differing in attributes get distinct cache keys.
func (a *Analyzer[N, V]) fingerprint(p *Policy[N, V]) string {
	h := sha256.New()
	digest := func(prefix string, e Entity[N, V]) {
		io.WriteString(h, prefix+e.ID()+":")
		if b, err := json.Marshal(e); err == nil {
			h.Write(b)
		} else {
			io.WriteString(h, err.Error())
		}
		io.WriteString(h, "\n")
	}
	for _, u := range p.Users {
		digest("u:", u)
	}
	for _, r := range p.Resources {
		digest("r:", r)
	}
	fmt.Fprintf(h, "rules:%d\n", len(p.Rules))
	return hex.EncodeToString(h.Sum(nil))
}

func (a *Analyzer[N, V]) cacheKey(policyFP string, rule *Rule[N, V]) string {
	return fmt.Sprintf("%s|%s|%d|%s", a.strategy.Name(), policyFP, a.maxUsers, rule.Checksum())
}

// AnalyzeRule enumerates one rule, serving repeats from cache
func (a *Analyzer[N, V]) AnalyzeRule(p *Policy[N, V], rule *Rule[N, V]) (RuleReport, error) {
	return a.analyzeRule(p, rule, a.fingerprint(p))
}

func (a *Analyzer[N, V]) analyzeRule(p *Policy[N, V], rule *Rule[N, V], policyFP string) (RuleReport, error) {
	report := RuleReport{
		RuleID:      rule.ID,
		Description: rule.Description,
		Actions:     rule.ActionList(),
	}
	key := a.cacheKey(policyFP, rule)
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			report.Matches = v.([]Match)
			report.FromCache = true
			return report, nil
		}
	}
	start := time.Now()
	matches, err := EnumerateMatches(a.strategy, p, rule, a.maxUsers)
	if err != nil {
		return report, fmt.Errorf("rule %d: %w", rule.ID, err)
	}
	report.Matches = matches
	report.Elapsed = time.Since(start)
	if a.cache != nil {
		a.cache.Set(key, matches, int64(len(matches)+1))
	}
	a.log.Debug("rule enumerated",
		"strategy", a.strategy.Name(),
		"rule", rule.ID,
		"matches", len(matches),
		"elapsed", report.Elapsed.String())
	return report, nil
}

// AnalyzePolicy enumerates every rule of the policy. When the strategy plans
// rule order, cheap rules run and report first.
func (a *Analyzer[N, V]) AnalyzePolicy(p *Policy[N, V]) (*PolicyReport, error) {
	start := time.Now()
	order := make([]int, len(p.Rules))
	for i := range order {
		order[i] = i
	}
	if planner, ok := a.strategy.(RulePlanner[N, V]); ok {
		order = planner.PlanRules(p)
	}
	policyFP := a.fingerprint(p)
	report := &PolicyReport{
		Strategy:  a.strategy.Name(),
		Users:     len(p.Users),
		Resources: len(p.Resources),
	}
	for _, idx := range order {
		rr, err := a.analyzeRule(p, &p.Rules[idx], policyFP)
		if err != nil {
			return nil, err
		}
		report.Rules = append(report.Rules, rr)
		report.TotalMatches += len(rr.Matches)
	}
	report.Elapsed = time.Since(start)
	a.log.Info("policy analyzed",
		"strategy", report.Strategy,
		"rules", len(report.Rules),
		"matches", report.TotalMatches,
		"elapsed", report.Elapsed.String())
	return report, nil
}

// Wait flushes pending cache writes. Tests use it before asserting hits.
func (a *Analyzer[N, V]) Wait() {
	if a.cache != nil {
		a.cache.Wait()
	}
}

// WriteJSON renders the report as indented JSON
func (r *PolicyReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteStats renders a console summary: one line per rule plus totals
func (r *PolicyReport) WriteStats(w io.Writer) {
	fmt.Fprintf(w, "strategy=%s users=%d resources=%d rules=%d\n", r.Strategy, r.Users, r.Resources, len(r.Rules))
	for _, rr := range r.Rules {
		actions := make([]string, len(rr.Actions))
		for i, a := range rr.Actions {
			actions[i] = string(a)
		}
		source := ""
		if rr.FromCache {
			source = " (cached)"
		}
		fmt.Fprintf(w, "  rule %-3d matches=%-8d elapsed=%-12s actions={%s}%s\n",
			rr.RuleID, len(rr.Matches), rr.Elapsed, strings.Join(actions, " "), source)
		if rr.Description != "" {
			fmt.Fprintf(w, "           %s\n", rr.Description)
		}
	}
	fmt.Fprintf(w, "total matches=%d elapsed=%s\n", r.TotalMatches, r.Elapsed)
}

// WritePolicyJSON dumps a parsed policy as indented JSON. Entity values
// marshal through their concrete domain types.
func WritePolicyJSON[N comparable, V Value[V]](w io.Writer, p *Policy[N, V]) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Users     []Entity[N, V] `json:"users"`
		Resources []Entity[N, V] `json:"resources"`
		Rules     []Rule[N, V]   `json:"rules"`
	}{p.Users, p.Resources, p.Rules})
}
