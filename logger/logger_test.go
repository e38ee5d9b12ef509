package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
		verbosity  int
	}{
		{name: "JSON output mode", jsonOutput: true, verbosity: 0},
		{name: "Console output mode", jsonOutput: false, verbosity: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			err := Initialize(tt.jsonOutput, tt.verbosity)
			if err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}
			if Logger == nil {
				t.Fatal("Initialize() did not set global Logger")
			}
			if JSONOutput != tt.jsonOutput {
				t.Errorf("Initialize() JSONOutput = %v, want %v", JSONOutput, tt.jsonOutput)
			}

			Logger.Sync()
			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{-1, zapcore.WarnLevel},
		{VerbosityUser, zapcore.WarnLevel},
		{VerbosityInfo, zapcore.InfoLevel},
		{VerbosityDebug, zapcore.DebugLevel},
		{VerbosityTrace, zapcore.DebugLevel},
		{VerbosityAll + 3, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		if got := VerbosityToLevel(tt.verbosity); got != tt.want {
			t.Errorf("VerbosityToLevel(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestShouldOutput(t *testing.T) {
	assert.True(t, ShouldOutput(VerbosityUser, OutputResults))
	assert.False(t, ShouldOutput(VerbosityUser, OutputRetries))
	assert.True(t, ShouldOutput(VerbosityInfo, OutputRetries))
	assert.False(t, ShouldOutput(VerbosityInfo, OutputCacheHits))
	assert.True(t, ShouldOutput(VerbosityDebug, OutputCacheHits))
	assert.False(t, ShouldOutput(VerbosityDebug, OutputTraversal))
	assert.True(t, ShouldOutput(VerbosityAll, OutputResponseBody))

	// Unknown categories require maximum verbosity
	assert.False(t, ShouldOutput(VerbosityTrace, OutputCategory(999)))
	assert.True(t, ShouldOutput(VerbosityAll, OutputCategory(999)))
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "cache", CategoryName(OutputCacheHits))
	assert.Equal(t, "unknown", CategoryName(OutputCategory(999)))
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core).Sugar()

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithComponent(ctx, "walker")

	FromContext(ctx, base).Infow("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "run-1", fields[FieldRunID])
		assert.Equal(t, "walker", fields[FieldComponent])
	}
}

func TestFromContext_NoFields(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	base := zap.New(core).Sugar()

	assert.Same(t, base, FromContext(context.Background(), base))
}

func TestNamed_NilFallsBackToGlobal(t *testing.T) {
	assert.NotNil(t, Named(nil, "remote"))
}

func TestEnabled_UsesInitializedVerbosity(t *testing.T) {
	t.Cleanup(func() { Verbosity = VerbosityUser })

	require.NoError(t, Initialize(false, VerbosityTrace))
	assert.Equal(t, VerbosityTrace, Verbosity)
	assert.True(t, Enabled(OutputTraversal))
	assert.True(t, Enabled(OutputSkippedRefs))
	assert.False(t, Enabled(OutputRequestBody))

	require.NoError(t, Initialize(false, VerbosityUser))
	assert.False(t, Enabled(OutputTraversal))
	assert.True(t, Enabled(OutputResults))
}
