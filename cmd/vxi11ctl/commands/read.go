package commands

import (
	"github.com/spf13/cobra"

	"github.com/scopebridge/vxi11/scpi"
)

var readDevice string

var readCmd = &cobra.Command{
	Use:   "read <host:port> <query>",
	Short: "Send a SCPI query and print the response",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		installMetrics(cfg)

		ctx, cancel := withTimeout(cmd.Context(), cfg.Connect.ConnectTimeout*4)
		defer cancel()

		inst, err := connect(ctx, args[0], readDevice, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = inst.Close(ctx) }()

		resp, err := scpi.New(inst).Query(ctx, args[1])
		if err != nil {
			return err
		}
		cmd.Println(resp)
		return nil
	},
}

func init() {
	readCmd.Flags().StringVar(&readDevice, "device", "", "VXI-11 device name (default: inst0)")
}
