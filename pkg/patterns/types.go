// Package patterns turns traversal results into event-storm findings.
package patterns

// PatternKind names a detected anti-pattern.
type PatternKind string

const (
	TightEventLoop         PatternKind = "TIGHT_EVENT_LOOP"
	UncontrolledFanout     PatternKind = "UNCONTROLLED_FANOUT"
	ExplosiveAmplification PatternKind = "EXPLOSIVE_AMPLIFICATION"
)

// Kinds lists every pattern the classifier can emit, in name order.
func Kinds() []PatternKind {
	return []PatternKind{ExplosiveAmplification, TightEventLoop, UncontrolledFanout}
}

// Severity of a finding. Ordering is CRITICAL > WARNING > INFO.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists all severities from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityWarning, SeverityInfo}
}

// Rank orders severities; unknown values rank below INFO.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Finding is one detected risk.
type Finding struct {
	Pattern  PatternKind `json:"pattern"`
	Severity Severity    `json:"severity"`
	// Subject is the block type the finding is keyed on.
	Subject string `json:"subject"`
	// Subjects lists every block type involved, Subject first.
	Subjects       []string       `json:"subjects"`
	Description    string         `json:"description"`
	Evidence       map[string]any `json:"evidence"`
	Recommendation string         `json:"recommendation"`
}

// Thresholds configures the classifier rules.
type Thresholds struct {
	// LoopDepth is the largest loop, in hops, reported as tight.
	LoopDepth int `yaml:"loop_depth" json:"loop_depth"`
	// Fanout is the factor above which a source is flagged.
	Fanout float64 `yaml:"fanout" json:"fanout"`
	// Explosive is the factor above which fan-out becomes critical.
	Explosive float64 `yaml:"explosive" json:"explosive"`
}

// DefaultThresholds returns the stock rule bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LoopDepth: 2,
		Fanout:    30,
		Explosive: 50,
	}
}

const (
	loopRecommendation   = "Break loop with state guard (BOOL flag) or timer-based debouncing (100ms min interval)"
	fanoutRecommendation = "Use EventChainHead (SE.AppSequence library) or adapter consolidation to reduce event multiplication"
)
