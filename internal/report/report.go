// Package report renders volumes, process lists and termination outcomes
// for the terminal or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sigreer/devolume/internal/handles"
	"github.com/sigreer/devolume/internal/history"
	"github.com/sigreer/devolume/internal/terminate"
	"github.com/sigreer/devolume/internal/volume"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const (
	iconPass = "✓"
	iconFail = "✗"
)

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Volumes prints a numbered volume table. Numbers start at 1.
func Volumes(w io.Writer, volumes []volume.Volume) {
	if len(volumes) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No external volumes found."))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-3s %-20s %-32s %-14s %-8s %s", "#", "NAME", "PATH", "DEVICE", "FS", "SIZE")))
	for i, v := range volumes {
		size := "-"
		if v.TotalBytes > 0 {
			size = humanize.IBytes(v.TotalBytes)
		}
		fmt.Fprintf(w, "%-3d %-20s %-32s %-14s %-8s %s\n", i+1, v.Name, v.Path, orDash(v.Device), orDash(v.FSType), size)
	}
}

// Processes prints the holder list with selection marks.
func Processes(w io.Writer, v volume.Volume, procs []handles.ProcessInfo) {
	if len(procs) == 0 {
		fmt.Fprintf(w, "No processes are using %s.\n", v.Name)
		return
	}

	fmt.Fprintf(w, "%d process(es) using %s (%s):\n", len(procs), v.Name, v.Path)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-4s %-8s %s", "SEL", "PID", "COMMAND")))
	for _, p := range procs {
		mark := "[ ]"
		if p.Selected {
			mark = "[x]"
		}
		fmt.Fprintf(w, "%-4s %-8d %s\n", mark, p.PID, p.Name)
	}
}

// Outcome prints one line per PID followed by the tally.
func Outcome(w io.Writer, out terminate.Outcome, procs []handles.ProcessInfo) {
	names := processNames(procs)
	for _, r := range out.Results {
		label := fmt.Sprintf("%d", r.PID)
		if name := names[r.PID]; name != "" {
			label = fmt.Sprintf("%d (%s)", r.PID, name)
		}
		if r.OK() {
			fmt.Fprintf(w, "%s terminated %s\n", successStyle.Render(iconPass), label)
		} else {
			fmt.Fprintf(w, "%s %s: %v\n", errorStyle.Render(iconFail), label, r.Err)
		}
	}

	summary := fmt.Sprintf("Terminated %d, failed %d", out.SuccessCount, out.FailCount)
	if out.FailCount > 0 {
		fmt.Fprintln(w, errorStyle.Render(summary))
	} else {
		fmt.Fprintln(w, successStyle.Render(summary))
	}
}

// Batches prints audit log entries, newest first as given.
func Batches(w io.Writer, batches []*history.BatchRecord) {
	if len(batches) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No termination batches recorded."))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-20s %-20s %-9s %-9s %-6s %s", "WHEN", "VOLUME", "REQUESTED", "SUCCEEDED", "FAILED", "ID")))
	for _, b := range batches {
		fmt.Fprintf(w, "%-20s %-20s %-9d %-9d %-6d %s\n",
			humanize.Time(b.StartedAt), b.VolumeName, b.Requested, b.Succeeded, b.Failed, dimStyle.Render(shortID(b.ID)))
	}
}

// ResultView is the JSON shape of one termination result.
type ResultView struct {
	PID   int    `json:"pid"`
	Name  string `json:"name,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// OutcomeView is the JSON shape of a termination batch.
type OutcomeView struct {
	SuccessCount int          `json:"success_count"`
	FailCount    int          `json:"fail_count"`
	Results      []ResultView `json:"results"`
}

// NewOutcomeView converts out for JSON output.
func NewOutcomeView(out terminate.Outcome, procs []handles.ProcessInfo) OutcomeView {
	names := processNames(procs)
	view := OutcomeView{
		SuccessCount: out.SuccessCount,
		FailCount:    out.FailCount,
		Results:      make([]ResultView, 0, len(out.Results)),
	}
	for _, r := range out.Results {
		rv := ResultView{PID: r.PID, Name: names[r.PID], OK: r.OK()}
		if r.Err != nil {
			rv.Error = r.Err.Error()
		}
		view.Results = append(view.Results, rv)
	}
	return view
}

func processNames(procs []handles.ProcessInfo) map[int]string {
	names := make(map[int]string, len(procs))
	for _, p := range procs {
		names[p.PID] = p.Name
	}
	return names
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
