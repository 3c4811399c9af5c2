package main

import (
	"errors"
	"io"

	"github.com/spf13/cobra"
)

var errUsage = errors.New("usage error")

// newRootCmd builds the command tree. Output goes to out; logs and
// watched events go to errOut only when they are not the command's result.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "casetrack",
		Short:         "casetrack edits shared QA test-case sessions",
		Long:          "casetrack creates and joins collaborative test-case sessions hosted by a casetrack server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: ./casetrack.yaml or ~/.config/casetrack/casetrack.yaml)")
	flags.String(keyServer, defaultServer, "casetrack server base URL")
	flags.String(keyUser, "", "identity to act as")
	flags.Duration(keyIdleWindow, defaultIdleWindow, "leave the session after this long without case changes")
	flags.Duration(keyHeartbeat, defaultHeartbeat, "presence heartbeat interval (0 disables)")
	flags.Bool(keyStrict, false, "reject writes made against a stale copy instead of overwriting")
	flags.Bool(keyVerbose, false, "log debug output to stderr")

	load := func(cmd *cobra.Command) (settings, error) {
		return loadSettings(cmd, configFile)
	}

	root.AddCommand(
		newCreateCmd(load),
		newJoinCmd(load),
		newImportCmd(load),
		newSetCmd(load),
		newRemoveCmd(load),
		newClearCmd(load),
		newReportCmd(load),
		newVersionCmd(),
	)
	return root
}

type settingsLoader func(cmd *cobra.Command) (settings, error)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("casetrack v0.1.0")
		},
	}
}
