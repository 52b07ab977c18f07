package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for anonpipe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anonpipe",
		Short: "De-identify DICOM images for research release",
		Long: `anonpipe de-identifies a workspace of DICOM images for research release.

A workspace is a directory with the downloaded files under flat/. A run
sorts them by accession and series, quarantines images that may show
patient information, clears burned-in regions on known secondary captures
and rewrites the headers of every released image according to a tag rule
table. Released images end up in anon/, withheld ones in quarantine/.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewLegendCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
