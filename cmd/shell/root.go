package shell

import (
	"os"

	"github.com/Kain-Deterick/VK-Internship/cmd/util"
	"github.com/spf13/cobra"
)

var (
	// ShellCmd starts an interactive shell on stdin
	ShellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell to work with the store",
		Long: `Interactive shell to work with the store. Each line is one command, type help for a list.
Stores are created per namespace on first use and are loaded with the seed records.
With --virtual-clock time only moves with the advance command.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
		RunE: run,
	}
)

func run(cmd *cobra.Command, _ []string) error {
	conf, err := util.GetConfig()
	if err != nil {
		return err
	}

	util.Logger.Debugf("shell configuration:\n%s", conf)

	rt := util.NewRuntime(conf)
	defer rt.Close()

	prompt := "> "
	if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		// input is piped
		prompt = ""
	}

	return New(rt, cmd.OutOrStdout()).Run(cmd.InOrStdin(), prompt)
}
