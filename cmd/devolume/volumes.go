package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/devolume/internal/report"
)

var volumesCmd = &cobra.Command{
	Use:   "volumes",
	Short: "List external volumes",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		a := setup()
		defer a.close()

		volumes, err := a.lister.List(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing volumes: %v\n", err)
		}
		if jsonOut {
			if err := report.JSON(os.Stdout, volumes); err != nil {
				fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
				os.Exit(1)
			}
		} else {
			report.Volumes(os.Stdout, volumes)
		}
		if err != nil {
			a.close()
			os.Exit(1)
		}
	},
}

func init() {
	volumesCmd.Flags().Bool("json", false, "Output as JSON")
}
