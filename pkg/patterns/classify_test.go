package patterns

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/stormcheck/pkg/algorithms"
)

func TestClassify_TightLoop(t *testing.T) {
	cycles := []algorithms.CycleWitness{
		{Node: "A", Depth: 2, Path: []string{"A", "B", "A"}},
	}

	got := Classify(cycles, nil, DefaultThresholds())
	if len(got) != 1 {
		t.Fatalf("Expected 1 finding, got %d", len(got))
	}
	f := got[0]
	if f.Pattern != TightEventLoop || f.Severity != SeverityCritical || f.Subject != "A" {
		t.Errorf("Unexpected finding %+v", f)
	}
	if !reflect.DeepEqual(f.Subjects, []string{"A", "B"}) {
		t.Errorf("Expected subjects [A B], got %v", f.Subjects)
	}
	if f.Evidence["cycle_depth"] != 2 || f.Recommendation == "" {
		t.Errorf("Missing evidence or recommendation: %+v", f)
	}
}

func TestClassify_LoopBeyondBound(t *testing.T) {
	cycles := []algorithms.CycleWitness{
		{Node: "A", Depth: 3, Path: []string{"A", "B", "C", "A"}},
	}

	if got := Classify(cycles, nil, DefaultThresholds()); len(got) != 0 {
		t.Errorf("Expected loop deeper than bound to be ignored, got %+v", got)
	}
}

func TestClassify_FactorBands(t *testing.T) {
	tests := []struct {
		factor   float64
		pattern  PatternKind
		severity Severity
	}{
		{1, "", ""},
		{30, "", ""},
		{36, UncontrolledFanout, SeverityWarning},
		{50, UncontrolledFanout, SeverityWarning},
		{51, ExplosiveAmplification, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("factor=%g", tt.factor), func(t *testing.T) {
			got := Classify(nil, map[string]float64{"A": tt.factor}, DefaultThresholds())
			if tt.pattern == "" {
				if len(got) != 0 {
					t.Errorf("Expected no findings, got %+v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("Expected exactly one finding, got %+v", got)
			}
			if got[0].Pattern != tt.pattern || got[0].Severity != tt.severity {
				t.Errorf("Expected %s/%s, got %s/%s", tt.pattern, tt.severity, got[0].Pattern, got[0].Severity)
			}
		})
	}
}

func TestClassify_Ordering(t *testing.T) {
	cycles := []algorithms.CycleWitness{
		{Node: "Zed", Depth: 1, Path: []string{"Zed", "Zed"}},
		{Node: "Alpha", Depth: 2, Path: []string{"Alpha", "Zed", "Alpha"}},
	}
	factors := map[string]float64{
		"Beta":  40,
		"Alpha": 60,
		"Gamma": 35,
		"Quiet": 2,
	}

	got := Classify(cycles, factors, DefaultThresholds())
	type key struct {
		sev     Severity
		subject string
		pattern PatternKind
	}
	var keys []key
	for _, f := range got {
		keys = append(keys, key{f.Severity, f.Subject, f.Pattern})
	}
	want := []key{
		{SeverityCritical, "Alpha", ExplosiveAmplification},
		{SeverityCritical, "Alpha", TightEventLoop},
		{SeverityCritical, "Zed", TightEventLoop},
		{SeverityWarning, "Beta", UncontrolledFanout},
		{SeverityWarning, "Gamma", UncontrolledFanout},
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Expected order %v, got %v", want, keys)
	}
}

func TestMaxSeverity(t *testing.T) {
	if _, ok := MaxSeverity(nil); ok {
		t.Error("Expected no severity for no findings")
	}
	got, ok := MaxSeverity([]Finding{{Severity: SeverityWarning}, {Severity: SeverityCritical}})
	if !ok || got != SeverityCritical {
		t.Errorf("Expected CRITICAL, got %q", got)
	}
}

func TestSeverityRank(t *testing.T) {
	if !(SeverityCritical.Rank() > SeverityWarning.Rank() && SeverityWarning.Rank() > SeverityInfo.Rank()) {
		t.Error("Severity ranks out of order")
	}
	if Severity("BOGUS").Rank() != 0 {
		t.Error("Unknown severity must rank lowest")
	}
}

// TestClassifyProperties checks ordering and threshold monotonicity.
func TestClassifyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	factorsGen := gen.SliceOf(gen.Float64Range(1, 120))

	toMap := func(vals []float64) map[string]float64 {
		m := make(map[string]float64, len(vals))
		for i, v := range vals {
			m[fmt.Sprintf("FB%02d", i)] = v
		}
		return m
	}

	properties.Property("fanout threshold above every factor silences fanout", prop.ForAll(
		func(vals []float64) bool {
			factors := toMap(vals)
			top := 0.0
			for _, v := range factors {
				top = max(top, v)
			}
			th := DefaultThresholds()
			th.Fanout = top + 1
			th.Explosive = top + 2
			for _, f := range Classify(nil, factors, th) {
				if f.Pattern == UncontrolledFanout || f.Pattern == ExplosiveAmplification {
					return false
				}
			}
			return true
		},
		factorsGen,
	))

	properties.Property("classification is sorted and repeatable", prop.ForAll(
		func(vals []float64) bool {
			factors := toMap(vals)
			a := Classify(nil, factors, DefaultThresholds())
			b := Classify(nil, factors, DefaultThresholds())
			if !reflect.DeepEqual(a, b) {
				return false
			}
			for i := 1; i < len(a); i++ {
				if a[i-1].Severity.Rank() < a[i].Severity.Rank() {
					return false
				}
				if a[i-1].Severity == a[i].Severity && a[i-1].Subject > a[i].Subject {
					return false
				}
			}
			return true
		},
		factorsGen,
	))

	properties.TestingRun(t)
}
