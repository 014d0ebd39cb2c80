package cmd

import (
	"fmt"
	"os"

	"github.com/Kain-Deterick/VK-Internship/cmd/demo"
	"github.com/Kain-Deterick/VK-Internship/cmd/perf"
	"github.com/Kain-Deterick/VK-Internship/cmd/shell"
	"github.com/Kain-Deterick/VK-Internship/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kvstorage",
		Short: "in-memory key-value store with per-entry expiration",
		Long: fmt.Sprintf(`kvstorage (v%s)

An ordered in-memory key-value store with per-entry TTLs,
lazy expiry on reads and explicit reclamation of expired entries.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvstorage",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kvstorage v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(demo.DemoCmd)
	RootCmd.AddCommand(shell.ShellCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
