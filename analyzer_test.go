package abac

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestAnalyzeRuleCaching(t *testing.T) {
	p := fixturePolicy()
	a, err := NewAnalyzer[string, testVal](OrderedStrategy[string, testVal]{})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	first, err := a.AnalyzeRule(p, &p.Rules[0])
	if err != nil {
		t.Fatalf("AnalyzeRule: %v", err)
	}
	if first.FromCache {
		t.Fatalf("first run should not be cached")
	}
	if len(first.Matches) != 4 {
		t.Fatalf("first run matches = %v", first.Matches)
	}
	a.Wait()

	second, err := a.AnalyzeRule(p, &p.Rules[0])
	if err != nil {
		t.Fatalf("AnalyzeRule: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("second run should come from cache")
	}
	if len(second.Matches) != len(first.Matches) {
		t.Fatalf("cached matches diverged: %v vs %v", second.Matches, first.Matches)
	}
}

func TestAnalyzerEngineConfigSizing(t *testing.T) {
	p := fixturePolicy()
	a, err := NewAnalyzer[string, testVal](OrderedStrategy[string, testVal]{},
		WithEngineConfig[string, testVal](EngineConfig{
			RistrettoNumCounter: 1_000,
			RistrettoMaxCost:    1 << 20,
			RistrettoBuffer:     64,
		}))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	if a.engine.RistrettoMaxCost != 1<<20 {
		t.Fatalf("engine config not retained: %+v", a.engine)
	}
	if _, err := a.AnalyzeRule(p, &p.Rules[0]); err != nil {
		t.Fatalf("AnalyzeRule: %v", err)
	}
	a.Wait()
	second, err := a.AnalyzeRule(p, &p.Rules[0])
	if err != nil {
		t.Fatalf("AnalyzeRule: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("config-sized cache should still serve repeats")
	}
}

func TestAnalyzeRuleWithoutCache(t *testing.T) {
	p := fixturePolicy()
	a, err := NewAnalyzer[string, testVal](OrderedStrategy[string, testVal]{}, WithoutCache[string, testVal]())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	if _, err := a.AnalyzeRule(p, &p.Rules[0]); err != nil {
		t.Fatalf("AnalyzeRule: %v", err)
	}
	a.Wait()
	second, err := a.AnalyzeRule(p, &p.Rules[0])
	if err != nil {
		t.Fatalf("AnalyzeRule: %v", err)
	}
	if second.FromCache {
		t.Fatalf("caching is disabled, nothing should be served from cache")
	}
}

func TestAnalyzePolicyReport(t *testing.T) {
	p := fixturePolicy()
	a, err := NewAnalyzer[string, testVal](OrderedStrategy[string, testVal]{}, WithMaxUsers[string, testVal](2))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	report, err := a.AnalyzePolicy(p)
	if err != nil {
		t.Fatalf("AnalyzePolicy: %v", err)
	}
	if report.Strategy != StrategyOrdered {
		t.Fatalf("strategy = %q", report.Strategy)
	}
	if report.Users != 5 || report.Resources != 4 {
		t.Fatalf("report sizes = %d users %d resources", report.Users, report.Resources)
	}
	if len(report.Rules) != len(p.Rules) {
		t.Fatalf("report covers %d rules", len(report.Rules))
	}
	// ordered plans cheap rules first; the unconditional rule leads
	if report.Rules[0].RuleID != 3 {
		t.Fatalf("first reported rule = %d", report.Rules[0].RuleID)
	}
	total := 0
	for _, rr := range report.Rules {
		total += len(rr.Matches)
	}
	if report.TotalMatches != total {
		t.Fatalf("TotalMatches = %d, summed = %d", report.TotalMatches, total)
	}
	// only alice and bob are in scope under maxUsers=2
	for _, rr := range report.Rules {
		for _, m := range rr.Matches {
			if m.UserID != "alice" && m.UserID != "bob" {
				t.Fatalf("rule %d matched out-of-scope user: %v", rr.RuleID, m)
			}
		}
	}
}

func TestWriteStats(t *testing.T) {
	p := fixturePolicy()
	a, err := NewAnalyzer[string, testVal](NaiveStrategy[string, testVal]{})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	report, err := a.AnalyzePolicy(p)
	if err != nil {
		t.Fatalf("AnalyzePolicy: %v", err)
	}
	var buf bytes.Buffer
	report.WriteStats(&buf)
	out := buf.String()
	for _, want := range []string{
		"strategy=naive users=5 resources=4 rules=4",
		"rule 0",
		"actions={read}",
		"faculty read gradebooks for courses they teach",
		"total matches=",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	p := fixturePolicy()
	a, err := NewAnalyzer[string, testVal](NaiveStrategy[string, testVal]{})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	report, err := a.AnalyzePolicy(p)
	if err != nil {
		t.Fatalf("AnalyzePolicy: %v", err)
	}
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var decoded PolicyReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.Strategy != report.Strategy || decoded.TotalMatches != report.TotalMatches {
		t.Fatalf("decoded report diverged: %+v", decoded)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	a, err := NewAnalyzer[string, testVal](NaiveStrategy[string, testVal]{})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	base := fixturePolicy()

	same := fixturePolicy()
	if a.fingerprint(base) != a.fingerprint(same) {
		t.Fatalf("structurally equal policies should share a fingerprint")
	}

	// same entity IDs, different attributes
	changed := fixturePolicy()
	changed.Users[0] = entity("alice", map[string]testVal{"role": str("student")}, nil)
	if a.fingerprint(base) == a.fingerprint(changed) {
		t.Fatalf("attribute change did not change the fingerprint")
	}

	trimmed := fixturePolicy()
	trimmed.Rules = trimmed.Rules[:1]
	if a.fingerprint(base) == a.fingerprint(trimmed) {
		t.Fatalf("rule count change did not change the fingerprint")
	}
}

func TestRuleChecksumSensitivity(t *testing.T) {
	p := fixturePolicy()
	r0 := p.Rules[0]
	base := r0.Checksum()
	if base != p.Rules[0].Checksum() {
		t.Fatalf("checksum is not stable")
	}
	modified := r0
	modified.UserConditions = append([]Condition[string, testVal]{}, r0.UserConditions...)
	modified.UserConditions[0] = cond(nameE("role"), Equals, litE(str("staff")))
	if modified.Checksum() == base {
		t.Fatalf("checksum ignores condition changes")
	}
}
