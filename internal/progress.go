package internal

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// UIManager handles all user interface concerns (progress, verbose output, warnings)
type UIManager interface {
	// NewProgressBar shows a bar for total steps. A negative total shows a spinner.
	NewProgressBar(total int, description string) ProgressBar

	Verbose(format string, args ...any)
	Printf(format string, args ...any)
	Println(args ...any)
	Warnf(format string, args ...any)

	Out() io.Writer
}

// ProgressBar abstracts progress bar operations
type ProgressBar interface {
	Set(current int)
	Describe(description string)
	Finish()
}

// StandardUIManager writes status to out and warnings to errOut
type StandardUIManager struct {
	out         io.Writer
	errOut      io.Writer
	verbose     bool
	quiet       bool
	interactive bool
}

// NewUIManager creates a UI on stdout and stderr. Progress bars are shown only on a terminal.
func NewUIManager(verbose, quiet bool) UIManager {
	return NewUIManagerWithWriters(os.Stdout, os.Stderr, verbose, quiet, isTerminal(os.Stderr))
}

// NewUIManagerWithWriters creates a UI on the given writers
func NewUIManagerWithWriters(out, errOut io.Writer, verbose, quiet, interactive bool) UIManager {
	return &StandardUIManager{
		out:         out,
		errOut:      errOut,
		verbose:     verbose,
		quiet:       quiet,
		interactive: interactive,
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (ui *StandardUIManager) NewProgressBar(total int, description string) ProgressBar {
	if ui.quiet || !ui.interactive {
		return silentProgressBar{}
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ui.errOut),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	return &visibleProgressBar{bar: bar}
}

func (ui *StandardUIManager) Verbose(format string, args ...any) {
	if ui.verbose {
		fmt.Fprintf(ui.errOut, format, args...)
	}
}

func (ui *StandardUIManager) Printf(format string, args ...any) {
	if !ui.quiet {
		fmt.Fprintf(ui.out, format, args...)
	}
}

func (ui *StandardUIManager) Println(args ...any) {
	if !ui.quiet {
		fmt.Fprintln(ui.out, args...)
	}
}

func (ui *StandardUIManager) Warnf(format string, args ...any) {
	fmt.Fprintf(ui.errOut, "Warning: "+format, args...)
}

func (ui *StandardUIManager) Out() io.Writer {
	return ui.out
}

type visibleProgressBar struct {
	bar *progressbar.ProgressBar
}

func (v *visibleProgressBar) Set(current int) {
	_ = v.bar.Set(current)
}

func (v *visibleProgressBar) Describe(description string) {
	v.bar.Describe(description)
}

func (v *visibleProgressBar) Finish() {
	_ = v.bar.Finish()
}

type silentProgressBar struct{}

func (silentProgressBar) Set(int)         {}
func (silentProgressBar) Describe(string) {}
func (silentProgressBar) Finish()         {}
