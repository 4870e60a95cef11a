package utils

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Probe reports whether a TCP endpoint is accepting connections. Used as
// a fast reachability check before handing an endpoint to the terminal
// SDK, which has a much slower failure mode.
func Probe(ip string, port int, timeout time.Duration) bool {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// DetectLocalIP returns the first non-loopback IPv4 address of this host.
func DetectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IPv4 address found")
}
