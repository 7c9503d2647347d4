package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scopebridge/vxi11/portmap"
	"github.com/scopebridge/vxi11/vxi11"
)

var discoverIface string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Broadcast-discover VXI-11 Core services via the portmapper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		installMetrics(cfg)

		ctx, cancel := withTimeout(cmd.Context(), 0)
		defer cancel()

		replies, err := portmap.BroadcastGetPort(
			ctx, discoverIface, cfg.Discovery.MulticastAddr,
			vxi11.CoreProgram, vxi11.CoreVersion, portmap.IPProtoTCP,
			cfg.Discovery.IdleTimeout,
		)
		if err != nil {
			return err
		}

		count := 0
		for reply := range replies {
			if reply.Err != nil {
				cmd.PrintErrln(reply.Err)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.String())
			count++
		}
		if count == 0 {
			cmd.Println("no VXI-11 Core services found")
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverIface, "bind", "", "local address to bind the broadcast socket (default: OS-chosen)")
}
