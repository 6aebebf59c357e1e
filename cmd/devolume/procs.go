package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sigreer/devolume/internal/handles"
	"github.com/sigreer/devolume/internal/report"
	"github.com/sigreer/devolume/internal/volume"
	"github.com/sigreer/devolume/internal/workflow"
)

var procsCmd = &cobra.Command{
	Use:   "procs <volume>",
	Short: "Show processes using a volume",
	Long: `Show the processes holding files open on an external volume.

The volume is matched by mount path first, then by display name. With
--path the argument is probed as-is, without checking that it is an
external volume.

Examples:
  devolume procs Backup
  devolume procs /media/alice/USB
  devolume procs --path /mnt/scratch`,
	Args: cobra.ExactArgs(1),
	Run:  runProcs,
}

func init() {
	procsCmd.Flags().Bool("json", false, "Output as JSON")
	procsCmd.Flags().Bool("path", false, "Probe the argument as a path instead of a listed volume")
}

type procsOutput struct {
	Volume    volume.Volume         `json:"volume"`
	Processes []handles.ProcessInfo `json:"processes"`
}

func runProcs(cmd *cobra.Command, args []string) {
	jsonOut, _ := cmd.Flags().GetBool("json")
	asPath, _ := cmd.Flags().GetBool("path")
	ctx := cmd.Context()

	a := setup()
	defer a.close()

	var (
		v     volume.Volume
		procs []handles.ProcessInfo
		err   error
	)
	if asPath {
		path, absErr := filepath.Abs(args[0])
		if absErr != nil {
			fmt.Fprintf(os.Stderr, "Error resolving path: %v\n", absErr)
			a.close()
			os.Exit(1)
		}
		v = volume.Volume{Name: filepath.Base(path), Path: path}
		procs, err = a.prober.Probe(ctx, path)
	} else {
		s := workflow.NewSession(a.lister, a.prober, a.executor)
		v, procs, err = openVolume(cmd, s, args[0])
		if errors.Is(err, workflow.ErrUnknownVolume) {
			a.close()
			os.Exit(1)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error probing %s: %v\n", v.Path, err)
	}
	if jsonOut {
		if encErr := report.JSON(os.Stdout, procsOutput{Volume: v, Processes: procs}); encErr != nil {
			fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", encErr)
			err = encErr
		}
	} else {
		report.Processes(os.Stdout, v, procs)
	}
	if err != nil {
		a.close()
		os.Exit(1)
	}
}

// openVolume lists volumes and selects key. An unknown volume is reported
// here and returned as workflow.ErrUnknownVolume; any other error is a
// probe diagnostic.
func openVolume(cmd *cobra.Command, s *workflow.Session, key string) (volume.Volume, []handles.ProcessInfo, error) {
	volumes, err := s.ListVolumes(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing volumes: %v\n", err)
	}

	procs, err := s.SelectVolume(cmd.Context(), key)
	if errors.Is(err, workflow.ErrUnknownVolume) {
		fmt.Fprintf(os.Stderr, "No external volume named %q\n", key)
		if len(volumes) > 0 {
			fmt.Fprintln(os.Stderr, "Available volumes:")
			for _, v := range volumes {
				fmt.Fprintf(os.Stderr, "  %s (%s)\n", v.Name, v.Path)
			}
		}
		return volume.Volume{}, nil, err
	}
	return s.Volume(), procs, err
}
