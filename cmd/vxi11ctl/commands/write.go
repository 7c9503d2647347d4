package commands

import (
	"github.com/spf13/cobra"

	"github.com/scopebridge/vxi11/scpi"
)

var writeDevice string

var writeCmd = &cobra.Command{
	Use:   "write <host:port> <command>",
	Short: "Send a SCPI command with no response expected",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		installMetrics(cfg)

		ctx, cancel := withTimeout(cmd.Context(), cfg.Connect.ConnectTimeout*4)
		defer cancel()

		inst, err := connect(ctx, args[0], writeDevice, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = inst.Close(ctx) }()

		return scpi.New(inst).Send(ctx, args[1])
	},
}

func init() {
	writeCmd.Flags().StringVar(&writeDevice, "device", "", "VXI-11 device name (default: inst0)")
}
