package commands

import (
	"github.com/spf13/cobra"

	"github.com/res2h/res2h-go/pkg/res2h"
)

// Exit codes returned by the res2h binary.
const (
	ExitUsage        = 1
	ExitInvalidInput = 2
	ExitConvert      = 3
	ExitDump         = 4
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

var logLevel string

var RootCmd = &cobra.Command{
	Use:           "res2h",
	Short:         "Pack files into binary resource archives and read them back",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return res2h.SetLogLevel(logLevel)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log verbosity (debug, info, warn, error, disabled)")
	RootCmd.AddCommand(CreateCmd)
	RootCmd.AddCommand(AppendCmd)
	RootCmd.AddCommand(DumpCmd)
}
