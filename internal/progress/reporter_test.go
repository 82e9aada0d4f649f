package progress

import (
	"bytes"
	"testing"
)

func TestNewReporterUnderCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter("Importing").(*CIReporter); !ok {
		t.Error("expected CIReporter when CI is set")
	}
}

func TestNewReporterInTerminal(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	if _, ok := NewReporter("Importing").(*TerminalReporter); !ok {
		t.Error("expected TerminalReporter outside CI")
	}
}

func TestCIReporterOutput(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{description: "Importing facilities", out: &buf}
	r.Start(2)
	r.Update(1, "Hospital Central")
	r.Update(2, "Clínica Norte")
	r.Finish()

	want := "Importing facilities: 2 item(s)\n[1/2] Hospital Central\n[2/2] Clínica Norte\nImporting facilities: done\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
