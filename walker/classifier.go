package walker

import "strings"

// Classifier supplies the domain vocabulary the walker needs. The traversal
// itself never inspects collection or process names directly.
type Classifier interface {
	// IsTerminal reports collections holding file-bearing artifacts.
	IsTerminal(collection string) bool
	// IsIntermediate reports collections whose producers are always followed.
	IsIntermediate(collection string) bool
	// IsReprocessing reports processes a terminal artifact may be re-derived by.
	IsReprocessing(processName string) bool
	IsTransfer(processName string) bool
	IsLossyTransform(processName string) bool
	IsSample(collection string) bool
	IsReads(collection string) bool
	IsAssembly(collection string) bool
}

// DefaultClassifier recognises the ENIGMA CORAL vocabulary. Matching is
// case-insensitive; collection names are compared with their sdt_/ddt_
// prefix removed.
type DefaultClassifier struct{}

var _ Classifier = DefaultClassifier{}

func kind(collection string) string {
	c := strings.ToLower(collection)
	c = strings.TrimPrefix(c, "sdt_")
	return strings.TrimPrefix(c, "ddt_")
}

func containsAny(s string, words ...string) bool {
	s = strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (DefaultClassifier) IsTerminal(collection string) bool {
	return kind(collection) == "reads"
}

func (DefaultClassifier) IsIntermediate(collection string) bool {
	k := kind(collection)
	return k == "assembly" || k == "genome"
}

func (DefaultClassifier) IsReprocessing(processName string) bool {
	return containsAny(processName, "reads processing", "copy data")
}

func (DefaultClassifier) IsTransfer(processName string) bool {
	return containsAny(processName, "copy")
}

func (DefaultClassifier) IsLossyTransform(processName string) bool {
	return containsAny(processName, "trim", "adapter", "reads processing")
}

func (DefaultClassifier) IsSample(collection string) bool {
	return kind(collection) == "sample"
}

func (DefaultClassifier) IsReads(collection string) bool {
	return containsAny(collection, "reads")
}

func (DefaultClassifier) IsAssembly(collection string) bool {
	return containsAny(collection, "assembly")
}
