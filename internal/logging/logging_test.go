package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	quiet, err := New(false)
	if err != nil {
		t.Fatalf("New(false) failed: %v", err)
	}
	if quiet.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be disabled without verbose")
	}
	if !quiet.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be enabled")
	}

	loud, err := New(true)
	if err != nil {
		t.Fatalf("New(true) failed: %v", err)
	}
	if !loud.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug should be enabled with verbose")
	}
}
