package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scopebridge/vxi11/internal/logger"
	"github.com/scopebridge/vxi11/vxi11"
)

var (
	monitorDevice     string
	monitorListenAddr string
	monitorHandle     string
)

var monitorSRQCmd = &cobra.Command{
	Use:   "monitor-srq <host:port>",
	Short: "Establish an interrupt channel and print SRQ deliveries until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		installMetrics(cfg)

		connectCtx, cancelConnect := withTimeout(cmd.Context(), cfg.Connect.ConnectTimeout*4)
		inst, err := connect(connectCtx, args[0], monitorDevice, cfg)
		cancelConnect()
		if err != nil {
			return err
		}
		defer func() { _ = inst.Close(cmd.Context()) }()

		listenAddr := monitorListenAddr
		if listenAddr == "" {
			listenAddr = cfg.Interrupt.ListenAddr
		}

		srv, err := vxi11.EstablishInterrupt(cmd.Context(), inst.Link(), vxi11.InterruptOptions{ListenAddr: listenAddr})
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()

		handle := []byte(monitorHandle)
		if err := inst.EnableSRQ(cmd.Context(), handle); err != nil {
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		cmd.Printf("listening for SRQ on %s, press Ctrl+C to stop\n", srv.Addr())

		for {
			select {
			case <-sigChan:
				logger.Info("monitor-srq: shutdown signal received")
				return nil
			case h, ok := <-srv.SRQ():
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "SRQ: handle=%x\n", h)
			}
		}
	},
}

func init() {
	monitorSRQCmd.Flags().StringVar(&monitorDevice, "device", "", "VXI-11 device name (default: inst0)")
	monitorSRQCmd.Flags().StringVar(&monitorListenAddr, "listen", "", "interrupt channel listen address (default: config interrupt.listen_addr)")
	monitorSRQCmd.Flags().StringVar(&monitorHandle, "handle", "h", "opaque handle echoed back on each SRQ")
}
