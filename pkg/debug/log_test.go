package debug

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pupperjs/core-sub000/pkg/reactive"
)

func TestEnableLogging(t *testing.T) {
	var buf bytes.Buffer
	EnableLogging(&buf)
	defer DisableLogging()

	if !Enabled() {
		t.Fatal("Expected logging to be enabled")
	}

	cell := reactive.NewCell(reactive.NewTracker(), 1)
	cell.Set(2)
	Logf("custom %d", 7)

	out := buf.String()
	for _, want := range []string{"[pupper] ", "[Cell] Set called with value: 2", "custom 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestDisableLogging(t *testing.T) {
	var buf bytes.Buffer
	EnableLogging(&buf)
	DisableLogging()

	Log("dropped")
	reactive.NewCell(reactive.NewTracker(), 1).Set(2)

	if Enabled() {
		t.Error("Expected logging to be disabled")
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}
