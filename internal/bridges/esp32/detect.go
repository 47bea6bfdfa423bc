package esp32

import (
	"fmt"
	"runtime"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Default device paths used when nothing matches during detection.
const (
	DefaultPortWindows = "COM3"
	DefaultPortUnix    = "/dev/ttyACM0"
)

// portKeywords identify ESP32 boards and their usual USB-UART bridges.
var portKeywords = []string{"esp32", "cp210", "ch340", "usb-serial"}

// usbVendors are the USB vendor IDs of the same bridges, for platforms that
// report no product string.
var usbVendors = map[string]bool{
	"10c4": true, // Silicon Labs CP210x
	"1a86": true, // QinHeng CH340
	"303a": true, // Espressif native USB
}

// DetectPort returns the serial port most likely to be the ESP32. When no
// port matches it returns the platform default.
func DetectPort() string {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		ports = nil
	}
	return choosePort(ports, runtime.GOOS)
}

// choosePort selects a port from the enumerated list.
func choosePort(ports []*enumerator.PortDetails, goos string) string {
	for _, p := range ports {
		if p == nil {
			continue
		}
		desc := strings.ToLower(p.Name + " " + p.Product)
		for _, kw := range portKeywords {
			if strings.Contains(desc, kw) {
				return p.Name
			}
		}
		if p.IsUSB && usbVendors[strings.ToLower(p.VID)] {
			return p.Name
		}
	}

	if goos == "windows" {
		present := make(map[string]bool, len(ports))
		for _, p := range ports {
			if p != nil {
				present[strings.ToUpper(p.Name)] = true
			}
		}
		for i := 3; i < 20; i++ {
			name := fmt.Sprintf("COM%d", i)
			if present[name] {
				return name
			}
		}
		return DefaultPortWindows
	}

	return DefaultPortUnix
}
