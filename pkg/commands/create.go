package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/res2h/res2h-go/pkg/res2h"
)

var createOpts = res2h.CreateOptions{}

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a binary archive from a file or directory",
	RunE:  runCreate,
}

func init() {
	CreateCmd.Flags().StringVarP(&createOpts.InputPath, "input", "i", "", "Input file or directory to archive")
	CreateCmd.Flags().StringVarP(&createOpts.OutputPath, "output", "o", "", "Output archive file, or host file with --append")
	CreateCmd.Flags().BoolVarP(&createOpts.Recurse, "recurse", "r", false, "Recurse into subdirectories")
	CreateCmd.Flags().BoolVarP(&createOpts.AppendMode, "append", "a", false, "Append the archive to the output file instead of replacing it")
	CreateCmd.MarkFlagRequired("input")
	CreateCmd.MarkFlagRequired("output")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(createOpts.InputPath); err != nil {
		return &ExitError{Code: ExitInvalidInput, Err: fmt.Errorf("invalid input path %q: %w", createOpts.InputPath, err)}
	}
	if err := res2h.CreateArchive(createOpts); err != nil {
		return &ExitError{Code: ExitConvert, Err: err}
	}
	return nil
}
