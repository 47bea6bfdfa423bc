package peer

import (
	"fmt"
	"net"
)

// DefaultPort is the port bridges and relays listen on.
const DefaultPort = 8765

var (
	loopbackHosts = []string{"localhost", "127.0.0.1"}

	// hostOffsets are tried within the detected /24.
	hostOffsets = []int{1, 5, 100, 101, 102, 195, 200, 250}

	// fallbackNetworks are used when the local address is unknown.
	fallbackNetworks = []string{"192.168.1.", "192.168.0.", "10.0.0.", "172.16.0."}
	fallbackOffsets  = []int{1, 5, 100, 195}

	knownHosts = []string{"192.168.1.195", "192.168.1.5"}
)

// Candidates returns the ordered, de-duplicated list of server URLs to try.
//
// A non-empty override is returned alone. Otherwise the list is loopback
// first, then hosts in localIP's /24 (excluding localIP itself), or a set of
// common private networks when localIP is nil, then known hosts.
func Candidates(override string, localIP net.IP, port int) []string {
	if override != "" {
		return []string{override}
	}
	if port <= 0 {
		port = DefaultPort
	}

	seen := make(map[string]bool)
	var out []string
	add := func(host string) {
		url := fmt.Sprintf("ws://%s:%d", host, port)
		if !seen[url] {
			seen[url] = true
			out = append(out, url)
		}
	}

	for _, h := range loopbackHosts {
		add(h)
	}

	if ip4 := localIP.To4(); ip4 != nil {
		prefix := fmt.Sprintf("%d.%d.%d.", ip4[0], ip4[1], ip4[2])
		for _, off := range hostOffsets {
			if off == int(ip4[3]) {
				continue
			}
			add(fmt.Sprintf("%s%d", prefix, off))
		}
	} else {
		for _, network := range fallbackNetworks {
			for _, off := range fallbackOffsets {
				add(fmt.Sprintf("%s%d", network, off))
			}
		}
	}

	for _, h := range knownHosts {
		add(h)
	}

	return out
}

// DetectLocalIP returns the address of the interface used for outbound
// traffic. The UDP dial sends no packets.
func DetectLocalIP() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, fmt.Errorf("detecting local address: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.To4() == nil {
		return nil, fmt.Errorf("detecting local address: unexpected %v", conn.LocalAddr())
	}
	return addr.IP, nil
}

// Discover builds the candidate list for this host.
func Discover(override string, port int, logger Logger) []string {
	if override != "" {
		return Candidates(override, nil, port)
	}
	ip, err := DetectLocalIP()
	if err != nil && logger != nil {
		logger.Debug("local address unknown, using fallback networks", "error", err)
	}
	return Candidates("", ip, port)
}
