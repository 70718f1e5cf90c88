package httpx

import (
	"net"
	"strconv"
	"strings"
)

type Address string

// SplitHostPort splits host:port pairs into their parts,
// where the port is zero when missing or not a number.
func (a Address) SplitHostPort() (string, int) {
	host, port, err := net.SplitHostPort(string(a))
	if err != nil {
		return string(a), 0
	}
	val, err := strconv.Atoi(port)
	if err != nil {
		return host, 0
	}
	return host, val
}

// buildAddress joins network host from the first param
// with the port value of a listener from the second param.
//
// As example, address host.com:8080 and listener 123.123.123.123:8888 will be
// transformed to host.com:8888.
func buildAddress(address string, l Listener) string {
	addr, _, err := net.SplitHostPort(address)
	if err != nil {
		addr = address
	}
	if addr == "" || addr == "0.0.0.0" {
		addr = "localhost"
	}

	port := l.GetPort()
	if port > 0 && port != 80 && port != 443 {
		addr += ":" + strconv.Itoa(port)
	}
	return addr
}

func extractHost(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return strings.TrimSuffix(address, ":")
}

// LocalIPv4 lists every non-loopback IPv4 address of the machine,
// so the startup log can show the links other people on the network may use.
func LocalIPv4() []string {
	var ips []string
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4.String())
		}
	}
	return ips
}

// MergeAddresses takes the host of the address and puts
// the port into it.
func MergeAddresses(address string, port int) string {
	host, _ := Address(address).SplitHostPort()
	return net.JoinHostPort(host, strconv.Itoa(port))
}
