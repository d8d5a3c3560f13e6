package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/oarkflow/abac"
	"github.com/oarkflow/abac/domains/university"
)

const benchPolicy = `
userAttrib(prof1, position=faculty, department=cs, crsTaught={cs101})
userAttrib(stu1, position=student, department=cs, crsTaken={cs101})
resourceAttrib(gb1, type=gradebook, crs=cs101, departments={cs})

rule(position [ {faculty}; type [ {gradebook}; {readMyScores}; crsTaught ] crs)
`

func TestBenchCrossChecksStrategies(t *testing.T) {
	policy, err := abac.ParsePolicy[university.AttributeName, university.Value](benchPolicy, university.NewParser())
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	var buf bytes.Buffer
	if err := bench(&buf, policy, 0); err != nil {
		t.Fatalf("bench: %v", err)
	}
	out := buf.String()
	for _, name := range abac.StrategyNames() {
		if !strings.Contains(out, name) {
			t.Fatalf("output missing strategy %q:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "consistent: every strategy counted 1 matches") {
		t.Fatalf("output missing the consistency line:\n%s", out)
	}
}
