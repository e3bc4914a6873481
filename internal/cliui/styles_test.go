package cliui

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return string(out)
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "500ns"},
		{500 * time.Microsecond, "500µs"},
		{500 * time.Millisecond, "500ms"},
		{2500 * time.Millisecond, "2.50s"},
	}
	for _, c := range cases {
		if got := formatDuration(c.d); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestPrintStepReportsStageAndStatus(t *testing.T) {
	p := NewProgress("lib/foo.rs")
	out := captureStdout(t, func() {
		p.PrintStep(Step{Stage: StageRewrite, Status: StepSuccess, Duration: 3 * time.Millisecond})
	})
	if !strings.Contains(out, "Rewrite") {
		t.Fatalf("expected the stage name in output, got %q", out)
	}
	if !strings.Contains(out, "3ms") {
		t.Fatalf("expected the duration in output, got %q", out)
	}
}

func TestPrintStepReportsMessageOnWarning(t *testing.T) {
	p := NewProgress("lib/foo.rs")
	out := captureStdout(t, func() {
		p.PrintStep(Step{Stage: StageRewrite, Status: StepWarning, Message: "renamed extern crate"})
	})
	if !strings.Contains(out, "renamed extern crate") {
		t.Fatalf("expected the warning message in output, got %q", out)
	}
}

func TestPrintTargetStartIncludesPath(t *testing.T) {
	p := NewProgress("lib/foo.rs")
	out := captureStdout(t, p.PrintTargetStart)
	if !strings.Contains(out, "lib/foo.rs") {
		t.Fatalf("expected the target path in output, got %q", out)
	}
}

func TestPrintSummarySuccess(t *testing.T) {
	p := NewProgress("lib/foo.rs")
	out := captureStdout(t, func() { p.PrintSummary(true, "") })
	if !strings.Contains(out, "Success!") {
		t.Fatalf("expected a success summary, got %q", out)
	}
}

func TestPrintSummaryFailure(t *testing.T) {
	p := NewProgress("lib/foo.rs")
	out := captureStdout(t, func() { p.PrintSummary(false, "parse error at line 3") })
	if !strings.Contains(out, "parse error at line 3") {
		t.Fatalf("expected the error message in the summary, got %q", out)
	}
}
