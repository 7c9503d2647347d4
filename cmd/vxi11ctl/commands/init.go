package commands

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/scopebridge/vxi11/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a sample configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "vxi11ctl.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if !initForce {
			if _, err := os.Stat(path); err == nil {
				Exit("%s already exists; use --force to overwrite", path)
			}
		}

		defaults := config.ApplyDefaults()
		out, err := yaml.Marshal(defaults)
		if err != nil {
			return err
		}
		return os.WriteFile(path, out, 0o644)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
