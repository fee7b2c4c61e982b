package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripvoice"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tripvoice",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tripvoice version %s\n", strings.TrimSpace(tripvoice.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
