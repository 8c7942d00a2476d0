package term

import (
	"bytes"
	"os"
	"testing"
)

func TestIsTerminalWriter_NonFile(t *testing.T) {
	var buf bytes.Buffer
	if IsTerminalWriter(&buf) {
		t.Error("a bytes.Buffer is never a terminal")
	}
}

func TestIsTerminal_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if IsTerminal(w.Fd()) {
		t.Error("a pipe must not be reported as a terminal")
	}
}

func TestIsTerminalWriter_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if IsTerminalWriter(os.Stdout) {
		t.Error("NO_COLOR must disable terminal detection")
	}
}
