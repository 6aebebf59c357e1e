package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigreer/devolume/internal/report"
	"github.com/sigreer/devolume/internal/workflow"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Pick a volume and terminate its holders step by step",
	Long: `Walk through the volume, process and terminate steps with prompts.

Volume list:   number selects a volume, r refreshes, q quits.
Process list:  a PID toggles it, a selects all, n selects none,
               k terminates the selection, r refreshes, b goes back,
               q quits.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !stdinIsTerminal() {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		a := setup()
		defer a.close()

		ui := &interactiveUI{session: a.session(), prompt: newPrompter(os.Stdin, os.Stdout), out: os.Stdout}
		if err := ui.run(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			a.close()
			os.Exit(1)
		}
	},
}

// interactiveUI drives a workflow session from line input.
type interactiveUI struct {
	session *workflow.Session
	prompt  *prompter
	out     io.Writer
}

// run loops until the user quits, input ends or ctx is cancelled. A
// cancelled context also interrupts a pending prompt.
func (u *interactiveUI) run(ctx context.Context) error {
	u.listVolumes(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}

		var (
			quit bool
			err  error
		)
		switch u.session.State() {
		case workflow.StateProcessesListed:
			quit, err = u.processStep(ctx)
		default:
			quit, err = u.volumeStep(ctx)
		}
		if errors.Is(err, io.EOF) || (err != nil && ctx.Err() != nil) {
			fmt.Fprintln(u.out)
			return nil
		}
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

func (u *interactiveUI) listVolumes(ctx context.Context) {
	volumes, err := u.session.ListVolumes(ctx)
	if err != nil {
		fmt.Fprintf(u.out, "Error listing volumes: %v\n", err)
	}
	report.Volumes(u.out, volumes)
}

func (u *interactiveUI) volumeStep(ctx context.Context) (bool, error) {
	volumes := u.session.Volumes()
	answer, err := u.prompt.ask(ctx, fmt.Sprintf("\nVolume [1-%d], r refresh, q quit: ", len(volumes)))
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "":
		return false, nil
	case "q":
		return true, nil
	case "r":
		u.listVolumes(ctx)
		return false, nil
	}

	n, convErr := strconv.Atoi(answer)
	if convErr != nil || n < 1 || n > len(volumes) {
		fmt.Fprintf(u.out, "No volume %q\n", answer)
		return false, nil
	}

	procs, err := u.session.SelectVolume(ctx, volumes[n-1].Path)
	if err != nil {
		fmt.Fprintf(u.out, "Error probing %s: %v\n", volumes[n-1].Path, err)
	}
	report.Processes(u.out, u.session.Volume(), procs)
	return false, nil
}

func (u *interactiveUI) processStep(ctx context.Context) (bool, error) {
	answer, err := u.prompt.ask(ctx, "\nPID toggle, a all, n none, k kill, r refresh, b back, q quit: ")
	if err != nil {
		return false, err
	}

	v := u.session.Volume()
	switch strings.ToLower(answer) {
	case "":
		return false, nil
	case "q":
		return true, nil
	case "b":
		if err := u.session.Back(); err != nil {
			return false, err
		}
		report.Volumes(u.out, u.session.Volumes())
		return false, nil
	case "r":
		procs, err := u.session.Refresh(ctx)
		if err != nil {
			fmt.Fprintf(u.out, "Error probing %s: %v\n", v.Path, err)
		}
		report.Processes(u.out, v, procs)
		return false, nil
	case "a", "n":
		if err := u.session.SelectAll(answer == "a" || answer == "A"); err != nil {
			return false, err
		}
		report.Processes(u.out, v, u.session.Processes())
		return false, nil
	case "k":
		return false, u.terminate(ctx)
	}

	pid, convErr := strconv.Atoi(answer)
	if convErr != nil {
		fmt.Fprintf(u.out, "Unknown command %q\n", answer)
		return false, nil
	}
	if err := u.session.Toggle(pid); err != nil {
		if errors.Is(err, workflow.ErrUnknownProcess) {
			fmt.Fprintf(u.out, "PID %d is not in the list\n", pid)
			return false, nil
		}
		return false, err
	}
	report.Processes(u.out, v, u.session.Processes())
	return false, nil
}

func (u *interactiveUI) terminate(ctx context.Context) error {
	pids := u.session.SelectedPIDs()
	if len(pids) == 0 {
		fmt.Fprintln(u.out, "Nothing selected.")
		return nil
	}

	ok, err := u.prompt.confirm(ctx, fmt.Sprintf("Terminate %d process(es)?", len(pids)))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(u.out, "Cancelled.")
		return nil
	}

	targets := selectedProcesses(u.session.Processes())
	outcome, remaining, probeErr := u.session.Terminate(ctx)
	report.Outcome(u.out, outcome, targets)
	if probeErr != nil {
		fmt.Fprintf(u.out, "Error re-probing %s: %v\n", u.session.Volume().Path, probeErr)
	}
	report.Processes(u.out, u.session.Volume(), remaining)
	return nil
}
