package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/res2h/res2h-go/pkg/res2h"
)

var dumpOpts = res2h.DumpOptions{}

var DumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "List or extract the contents of an archive or embedded archive",
	RunE:  runDump,
}

func init() {
	DumpCmd.Flags().StringVarP(&dumpOpts.ArchivePath, "input", "i", "", "Archive file, or file with an embedded archive")
	DumpCmd.Flags().StringVarP(&dumpOpts.OutputPath, "output", "o", ".", "Directory extracted resources are written to")
	DumpCmd.Flags().BoolVar(&dumpOpts.InfoOnly, "info", false, "Only display archive information, extract nothing")
	DumpCmd.Flags().BoolVarP(&dumpOpts.FullPaths, "full-paths", "f", false, "Recreate resource path structure, creating directories as needed")
	DumpCmd.MarkFlagRequired("input")
}

func runDump(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(dumpOpts.ArchivePath); err != nil {
		return &ExitError{Code: ExitInvalidInput, Err: fmt.Errorf("invalid input path %q: %w", dumpOpts.ArchivePath, err)}
	}
	if err := res2h.DumpArchive(dumpOpts); err != nil {
		return &ExitError{Code: ExitDump, Err: err}
	}
	return nil
}
