package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - Results, errors with hints, final status
//	1 (-v)      - + Progress, retry notices, index build summary
//	2 (-vv)     - + Remote calls, cache hits, timing
//	3 (-vvv)    - + Traversal steps, skipped references
//	4 (-vvvv)   - + Full request/response bodies

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Command results
	OutputErrors                           // Errors with hints
	OutputUserStatus                       // Final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress   // Progress (e.g., "loaded 4211 sys_process rows")
	OutputRetries    // Retry notices for transient failures
	OutputIndexBuild // Provenance index build summary

	// Level 2 (-vv) - Detailed
	OutputHTTPCalls // Remote calls made
	OutputCacheHits // Response cache hits and misses
	OutputTiming    // Operation timing

	// Level 3 (-vvv) - Debug
	OutputTraversal   // Per-object traversal steps
	OutputSkippedRefs // References that failed to decode

	// Level 4 (-vvvv) - Full dump
	OutputRequestBody  // Full request payloads
	OutputResponseBody // Full response bodies
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	OutputProgress:   VerbosityInfo,
	OutputRetries:    VerbosityInfo,
	OutputIndexBuild: VerbosityInfo,

	OutputHTTPCalls: VerbosityDebug,
	OutputCacheHits: VerbosityDebug,
	OutputTiming:    VerbosityDebug,

	OutputTraversal:   VerbosityTrace,
	OutputSkippedRefs: VerbosityTrace,

	OutputRequestBody:  VerbosityAll,
	OutputResponseBody: VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories
var categoryNames = map[OutputCategory]string{
	OutputResults:      "results",
	OutputErrors:       "errors",
	OutputUserStatus:   "status",
	OutputProgress:     "progress",
	OutputRetries:      "retries",
	OutputIndexBuild:   "index-build",
	OutputHTTPCalls:    "http",
	OutputCacheHits:    "cache",
	OutputTiming:       "timing",
	OutputTraversal:    "traversal",
	OutputSkippedRefs:  "skipped-refs",
	OutputRequestBody:  "request-body",
	OutputResponseBody: "response-body",
}

// Enabled reports whether category is shown at the initialized verbosity.
func Enabled(category OutputCategory) bool {
	return ShouldOutput(Verbosity, category)
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// VerbosityDescription returns a description of what's shown at each level
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, progress, and retries"
	case VerbosityDebug:
		return "above + remote calls, cache hits, timing"
	case VerbosityTrace:
		return "above + traversal steps and skipped references"
	case VerbosityAll:
		return "full output including request/response bodies"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}
