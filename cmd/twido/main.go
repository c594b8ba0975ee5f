// Command twido is a terminal front end for the twido state store: it manages
// tasks and the reward garden, serves live snapshots and handles backups.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		exitFunc(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	user       string
	guest      bool
	lat, lon   float64
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "twido",
		Short:         "Work/private task tracking with a reward garden",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVarP(&opts.user, "user", "u", "", "signed-in user id (overrides config)")
	pf.BoolVar(&opts.guest, "guest", false, "use the local guest profile even when a user is configured")
	pf.Float64Var(&opts.lat, "lat", 0, "current latitude for location commands")
	pf.Float64Var(&opts.lon, "lon", 0, "current longitude for location commands")

	root.AddCommand(
		newAddCmd(opts),
		newListCmd(opts),
		newDoneCmd(opts),
		newTimerCmd(opts),
		newEditCmd(opts),
		newDeleteCmd(opts),
		newSubtaskCmd(opts),
		newModeCmd(opts),
		newLowEnergyCmd(opts),
		newBalanceCmd(opts),
		newGardenCmd(opts),
		newToolCmd(opts),
		newRespawnCmd(opts),
		newLocateCmd(opts),
		newServeCmd(opts),
		newBackupCmd(opts),
	)
	return root
}
