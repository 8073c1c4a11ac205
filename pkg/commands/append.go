package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/res2h/res2h-go/pkg/res2h"
)

var appendOpts = res2h.AppendOptions{}

var AppendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append the raw bytes of one file to another",
	RunE:  runAppend,
}

func init() {
	AppendCmd.Flags().StringVarP(&appendOpts.SourcePath, "input", "i", "", "File to append, typically an archive")
	AppendCmd.Flags().StringVarP(&appendOpts.DestinationPath, "output", "o", "", "File to append to, typically an executable")
	AppendCmd.MarkFlagRequired("input")
	AppendCmd.MarkFlagRequired("output")
}

func runAppend(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(appendOpts.SourcePath); err != nil {
		return &ExitError{Code: ExitInvalidInput, Err: fmt.Errorf("invalid input path %q: %w", appendOpts.SourcePath, err)}
	}
	if err := res2h.AppendArchive(appendOpts); err != nil {
		return &ExitError{Code: ExitConvert, Err: err}
	}
	return nil
}
