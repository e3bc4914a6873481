// Package cliui provides styled CLI output for the bundling pipeline,
// using lipgloss the way the teacher's own build output does.
package cliui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorSuccess = lipgloss.Color("#5AF78E")
	colorWarning = lipgloss.Color("#F7DC6F")
	colorError   = lipgloss.Color("#FF6B9D")
	colorMuted   = lipgloss.Color("#6C7086")
	colorText    = lipgloss.Color("#CDD6F4")
	colorHighlight = lipgloss.Color("#F5E0DC")
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 2).
			MarginBottom(1)

	styleSection = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	styleTargetPath = lipgloss.NewStyle().
			Foreground(colorHighlight).
			Bold(true)

	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)

	styleStageLabel = lipgloss.NewStyle().
			Foreground(colorText).
			Width(12).
			Align(lipgloss.Left)

	styleStageTime = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)

	styleSummary = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			MarginTop(1).
			PaddingTop(1)

	styleIndent = lipgloss.NewStyle().PaddingLeft(2)
)

// Stage names the pipeline steps shown to the user, in the order the
// bundler runs them for one target.
type Stage string

const (
	StageParse     Stage = "Parse"
	StageExpand    Stage = "Expand"
	StageProcMacro Stage = "ProcMacro"
	StageRewrite   Stage = "Rewrite"
	StageCfg       Stage = "Cfg"
	StageErase     Stage = "Erase"
	StageAssemble  Stage = "Assemble"
)

// StepStatus is the outcome of one pipeline stage.
type StepStatus int

const (
	StepSuccess StepStatus = iota
	StepSkipped
	StepWarning
	StepError
)

// Step is one reported stage outcome.
type Step struct {
	Stage    Stage
	Status   StepStatus
	Duration time.Duration
	Message  string
}

// Progress renders the step-by-step output for a single bundling run.
type Progress struct {
	start      time.Time
	targetPath string
}

// NewProgress begins reporting progress for one target (a binary or
// library root path).
func NewProgress(targetPath string) *Progress {
	return &Progress{start: time.Now(), targetPath: targetPath}
}

// PrintHeader prints the tool banner and version.
func PrintHeader(version string) {
	fmt.Println(styleHeader.Render("equipgo") + " " + styleMuted.Render("v"+version))
}

// PrintTargetStart announces which target is about to be bundled.
func (p *Progress) PrintTargetStart() {
	fmt.Println(styleSection.Render("Bundling"))
	fmt.Printf("  %s\n\n", styleTargetPath.Render(p.targetPath))
}

// PrintStep reports one pipeline stage's outcome.
func (p *Progress) PrintStep(step Step) {
	var icon, statusText, statusStyle string
	switch step.Status {
	case StepSuccess:
		icon, statusText = "✓", "done"
		statusStyle = styleSuccess.Render(statusText)
	case StepSkipped:
		icon, statusText = "○", "skipped"
		statusStyle = styleMuted.Render(statusText)
	case StepWarning:
		icon, statusText = "⚠", "warning"
		statusStyle = styleWarning.Render(statusText)
	case StepError:
		icon, statusText = "✗", "failed"
		statusStyle = styleError.Render(statusText)
	}

	label := styleStageLabel.Render(string(step.Stage))
	line := fmt.Sprintf("  %s %s %s", icon, label, statusStyle)
	if step.Duration > 0 {
		line += " " + styleStageTime.Render("("+formatDuration(step.Duration)+")")
	}
	fmt.Println(line)

	if step.Message != "" {
		fmt.Println(styleMuted.Render("    " + step.Message))
	}
}

// PrintSummary prints the final outcome for this target.
func (p *Progress) PrintSummary(success bool, errMsg string) {
	elapsed := time.Since(p.start)
	fmt.Println()

	var line string
	if success {
		line = fmt.Sprintf("✨ %s bundled in %s",
			styleSuccess.Render("Success!"),
			styleStageTime.Render(formatDuration(elapsed)))
	} else {
		line = fmt.Sprintf("💥 %s", styleError.Render("Bundling failed"))
		if errMsg != "" {
			line += "\n" + styleError.Render("   Error: ") + errMsg
		}
	}
	fmt.Println(styleSummary.Render(line))
}

// PrintWarning reports a non-fatal diagnostic (e.g. equiperr.Warning)
// outside the per-stage Step reporting, such as those PathRewriter
// surfaces for a renamed extern crate at a library root.
func PrintWarning(msg string) {
	fmt.Println(styleIndent.Render(styleWarning.Render("⚠ Warning: ") + msg))
}

// PrintError reports a fatal diagnostic.
func PrintError(msg string) {
	fmt.Println(styleIndent.Render(styleError.Render("✗ Error: ") + msg))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// Divider renders a horizontal rule between target reports.
func Divider() string {
	return styleMuted.Render(strings.Repeat("─", 60))
}
