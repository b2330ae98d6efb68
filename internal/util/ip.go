package util

import (
	"net"
	"strings"
)

// LocalIP returns the IPv4 address this host uses to reach the LAN. It
// prefers the source address of an outbound route, then scans interfaces,
// and finally falls back to loopback.
func LocalIP() string {
	if ip := routeIP(); ip != "" {
		return ip
	}
	if ip := interfaceIP(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// routeIP never sends a packet: connecting a UDP socket only selects a route.
func routeIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close() //nolint:errcheck

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsLoopback() || addr.IP.To4() == nil {
		return ""
	}
	return addr.IP.String()
}

func interfaceIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	var fallback string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if strings.HasPrefix(iface.Name, "br-") || strings.HasPrefix(iface.Name, "veth") ||
			strings.HasPrefix(iface.Name, "docker") {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ipv4 := ipnet.IP.To4()
			if ipv4 == nil || ipv4.IsLoopback() {
				continue
			}
			if ipv4.IsPrivate() {
				return ipv4.String()
			}
			if fallback == "" {
				fallback = ipv4.String()
			}
		}
	}
	return fallback
}
