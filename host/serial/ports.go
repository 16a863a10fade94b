//go:build !tinygo

package serial

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the host
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// String formats the port for listings
func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	s := fmt.Sprintf("%s usb %s:%s", p.Name, p.VID, p.PID)
	if p.Product != "" {
		s += " " + p.Product
	}
	if p.Serial != "" {
		s += " sn=" + p.Serial
	}
	return s
}

// ST-LINK virtual COM ports enumerate with this vendor ID
const STMicroVID = "0483"

// ListPorts enumerates serial ports with their USB identity where known
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			USB:     d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}

// IsSTLink reports whether the port is an ST-LINK virtual COM port
func (p PortInfo) IsSTLink() bool {
	return p.USB && strings.EqualFold(p.VID, STMicroVID)
}
