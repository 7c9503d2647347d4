package commands

import (
	"github.com/spf13/cobra"

	"github.com/scopebridge/vxi11/scpi"
)

var idnDevice string

var idnCmd = &cobra.Command{
	Use:   "idn <host:port>",
	Short: "Connect and query *IDN?",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		installMetrics(cfg)

		ctx, cancel := withTimeout(cmd.Context(), cfg.Connect.ConnectTimeout*4)
		defer cancel()

		inst, err := connect(ctx, args[0], idnDevice, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = inst.Close(ctx) }()

		periph := scpi.New(inst)
		idn, err := periph.Query(ctx, "*IDN?")
		if err != nil {
			return err
		}
		cmd.Println(idn)
		return nil
	},
}

func init() {
	idnCmd.Flags().StringVar(&idnDevice, "device", "", "VXI-11 device name (default: inst0)")
}
