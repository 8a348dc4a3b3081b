// Package output provides consistent CLI output formatting and result rendering.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/Anabaai/code-search/internal/search"
)

// Writer provides formatted status output for the CLI.
// Status lines go to stderr so stdout stays clean for results.
type Writer struct {
	out   io.Writer
	fancy bool
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	fancy := false
	if f, ok := out.(*os.File); ok {
		fancy = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Writer{out: out, fancy: fancy}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" && w.fancy {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "%s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Progress prints an in-place progress counter.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}
	if !w.fancy {
		_, _ = fmt.Fprintf(w.out, "%d/%d %s\n", current, total, msg)
		return
	}

	pct := float64(current) / float64(total) * 100
	_, _ = fmt.Fprintf(w.out, "\r%d/%d (%.0f%%) %s", current, total, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// resultSeparator frames each rendered chunk body.
const resultSeparator = "--------------------------------------------------"

// RenderResults writes the ranked hit listing consumed by both the CLI
// and the MCP tool response.
//
//	1. src/auth.py:10:24 (score: 0.87)
//	--------------------------------------------------
//	<content>
//	--------------------------------------------------
func RenderResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "No results found.")
		return
	}
	for i, r := range results {
		_, _ = fmt.Fprintf(w, "\n%d. %s:%d:%d (score: %.2f)\n",
			i+1, r.FilePath, r.LineStart, r.LineEnd, r.Score)
		_, _ = fmt.Fprintln(w, resultSeparator)
		_, _ = fmt.Fprintln(w, strings.TrimRight(r.Content, "\n"))
		_, _ = fmt.Fprintln(w, resultSeparator)
	}
}

// RenderResultsString renders the listing into a string.
func RenderResultsString(results []search.Result) string {
	var sb strings.Builder
	RenderResults(&sb, results)
	return sb.String()
}
