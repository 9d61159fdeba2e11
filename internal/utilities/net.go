package utilities

import (
	"net"
)

const NoNetworkFound = "no network found"

// displayInterfaces are tried in order when looking up the address shown on
// the device footer.
var displayInterfaces = []string{"eth0", "wlan0"}

// InterfaceIPv4 returns the first IPv4 address bound to the named interface.
func InterfaceIPv4(name string) (net.IP, error) {
	ifa, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	addrs, err := ifa.Addrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}
	return nil, &net.AddrError{Err: "no ipv4 address", Addr: name}
}

// GetOutboundIP returns the local address used to reach the public internet.
func GetOutboundIP() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = conn.Close()
	}()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP, nil
}

// DisplayAddress returns the address shown on the display footer: the first
// wired or wireless interface address, then the outbound address, then the
// NoNetworkFound marker.
func DisplayAddress() string {
	for _, name := range displayInterfaces {
		if ip, err := InterfaceIPv4(name); err == nil {
			return ip.String()
		}
	}
	if ip, err := GetOutboundIP(); err == nil {
		return ip.String()
	}
	return NoNetworkFound
}
