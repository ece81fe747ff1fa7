package corpus

import (
	"fmt"
	"sort"
)

// WarningKind classifies a recovered problem.
type WarningKind string

const (
	// WarnParseError: a block file was skipped.
	WarnParseError WarningKind = "PARSE_ERROR"
	// WarnDuplicateType: two files declare the same type name; the later path wins.
	WarnDuplicateType WarningKind = "DUPLICATE_TYPE"
	// WarnUnresolvedReference: an event wire was dropped while building the graph.
	WarnUnresolvedReference WarningKind = "UNRESOLVED_REFERENCE"
	// WarnEmptyGraph: the corpus produced no event edges at all.
	WarnEmptyGraph WarningKind = "EMPTY_GRAPH"
)

// Warning is a corpus loading or resolution issue that did not stop the run.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Path    string      `json:"path,omitempty"`
	Subject string      `json:"subject,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Path, w.Message)
}

// SortWarnings orders warnings by path, then kind, subject and message, so
// output never depends on parse scheduling.
func SortWarnings(ws []Warning) {
	sort.SliceStable(ws, func(i, j int) bool {
		a, b := ws[i], ws[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Message < b.Message
	})
}
