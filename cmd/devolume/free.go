package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/devolume/internal/handles"
	"github.com/sigreer/devolume/internal/report"
	"github.com/sigreer/devolume/internal/volume"
	"github.com/sigreer/devolume/internal/workflow"
)

var freeCmd = &cobra.Command{
	Use:   "free <volume>",
	Short: "Terminate the processes using a volume",
	Long: `Terminate the processes holding files open on an external volume, then
show what is still using it.

All holders are selected by default. Use --only to terminate just the
listed PIDs, or --exclude to spare some. Without --yes you are asked to
confirm; when stdin is not a terminal --yes is required.

Examples:
  devolume free Backup
  devolume free Backup --exclude 501
  devolume free /Volumes/Backup --only 900,901 --yes`,
	Args: cobra.ExactArgs(1),
	Run:  runFree,
}

func init() {
	freeCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	freeCmd.Flags().String("only", "", "Comma separated PIDs to terminate (default all)")
	freeCmd.Flags().String("exclude", "", "Comma separated PIDs to leave running")
	freeCmd.Flags().Bool("json", false, "Output as JSON")
}

type freeOptions struct {
	key       string
	only      []int
	exclude   []int
	yes       bool
	json      bool
	canPrompt bool
	stdout    io.Writer
	stderr    io.Writer
	prompt    *prompter
}

type freeOutput struct {
	Volume     volume.Volume         `json:"volume"`
	Outcome    report.OutcomeView    `json:"outcome"`
	Remaining  []handles.ProcessInfo `json:"remaining"`
	ProbeError string                `json:"probe_error,omitempty"`
}

func runFree(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	jsonOut, _ := cmd.Flags().GetBool("json")
	onlyFlag, _ := cmd.Flags().GetString("only")
	excludeFlag, _ := cmd.Flags().GetString("exclude")

	only, err := parsePIDs(onlyFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in --only: %v\n", err)
		os.Exit(1)
	}
	exclude, err := parsePIDs(excludeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in --exclude: %v\n", err)
		os.Exit(1)
	}

	a := setup()
	code := freeVolume(cmd.Context(), a.session(), freeOptions{
		key:       args[0],
		only:      only,
		exclude:   exclude,
		yes:       yes,
		json:      jsonOut,
		canPrompt: stdinIsTerminal(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		prompt:    newPrompter(os.Stdin, os.Stderr),
	})
	a.close()
	if code != 0 {
		os.Exit(code)
	}
}

// freeVolume runs the whole select, confirm, terminate and re-probe cycle
// and returns the process exit code.
func freeVolume(ctx context.Context, s *workflow.Session, opts freeOptions) int {
	// Human readable progress goes to stderr when stdout carries JSON.
	info := opts.stdout
	if opts.json {
		info = opts.stderr
	}

	volumes, err := s.ListVolumes(ctx)
	if err != nil {
		fmt.Fprintf(opts.stderr, "Error listing volumes: %v\n", err)
	}

	procs, err := s.SelectVolume(ctx, opts.key)
	if errors.Is(err, workflow.ErrUnknownVolume) {
		fmt.Fprintf(opts.stderr, "No external volume named %q\n", opts.key)
		for _, v := range volumes {
			fmt.Fprintf(opts.stderr, "  %s (%s)\n", v.Name, v.Path)
		}
		return 1
	}
	v := s.Volume()
	if err != nil {
		fmt.Fprintf(opts.stderr, "Error probing %s: %v\n", v.Path, err)
		return 1
	}
	if len(procs) == 0 {
		fmt.Fprintf(info, "No processes are using %s.\n", v.Name)
		if opts.json {
			return encodeJSON(opts.stdout, opts.stderr, freeOutput{Volume: v, Remaining: procs, Outcome: report.OutcomeView{Results: []report.ResultView{}}})
		}
		return 0
	}

	missing, err := applySelection(s, opts.only, opts.exclude)
	if err != nil {
		fmt.Fprintf(opts.stderr, "Error applying selection: %v\n", err)
		return 1
	}
	for _, pid := range missing {
		fmt.Fprintf(opts.stderr, "PID %d is not using %s, ignoring\n", pid, v.Name)
	}

	report.Processes(info, v, s.Processes())
	if len(s.SelectedPIDs()) == 0 {
		fmt.Fprintln(info, "Nothing selected to terminate.")
		return 0
	}

	if !opts.yes {
		if !opts.canPrompt {
			fmt.Fprintf(opts.stderr, "Error: %v\n", errNotInteractive)
			return 1
		}
		ok, err := opts.prompt.confirm(ctx, fmt.Sprintf("Terminate %d process(es)?", len(s.SelectedPIDs())))
		if err != nil || !ok {
			fmt.Fprintln(opts.stderr, "Aborted.")
			return 1
		}
	}

	targets := selectedProcesses(s.Processes())
	outcome, remaining, probeErr := s.Terminate(ctx)

	if opts.json {
		out := freeOutput{
			Volume:    v,
			Outcome:   report.NewOutcomeView(outcome, targets),
			Remaining: remaining,
		}
		if probeErr != nil {
			out.ProbeError = probeErr.Error()
		}
		if code := encodeJSON(opts.stdout, opts.stderr, out); code != 0 {
			return code
		}
	} else {
		report.Outcome(opts.stdout, outcome, targets)
		if probeErr != nil {
			fmt.Fprintf(opts.stderr, "Error re-probing %s: %v\n", v.Path, probeErr)
		} else {
			report.Processes(opts.stdout, v, remaining)
		}
	}

	if outcome.FailCount > 0 {
		return 1
	}
	return 0
}

func selectedProcesses(procs []handles.ProcessInfo) []handles.ProcessInfo {
	var selected []handles.ProcessInfo
	for _, p := range procs {
		if p.Selected {
			selected = append(selected, p)
		}
	}
	return selected
}
