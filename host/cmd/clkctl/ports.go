package main

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"clkhal/host/serial"
)

var (
	portsSTLinkOnly bool

	portsCmd = &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serial.ListPorts()
			if err != nil {
				return err
			}
			glog.V(1).Infof("Enumerated %d ports", len(ports))

			out := cmd.OutOrStdout()
			found := 0
			for _, p := range ports {
				if portsSTLinkOnly && !p.IsSTLink() {
					continue
				}
				fmt.Fprintln(out, p)
				found++
			}
			if found == 0 {
				fmt.Fprintln(out, "no serial ports found")
			}
			return nil
		},
	}
)

func init() {
	portsCmd.Flags().BoolVar(&portsSTLinkOnly, "stlink", false, "only list ST-LINK virtual COM ports")
}
