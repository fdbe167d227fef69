package sysinfo

import (
	"errors"
	"fmt"
	"net"

	"github.com/jackpal/gateway"
)

// LocalAddr reports the IPv4 address other machines on the LAN should
// use to reach this host. The interface sharing a subnet with the
// default gateway is the right answer on multi-homed machines; when no
// gateway is discoverable (hotspots, odd containers) the first routable
// IPv4 on any up interface is the best remaining guess.
func LocalAddr() (string, error) {
	if gw, err := gateway.DiscoverGateway(); err == nil {
		if ip, err := addrOnGatewaySubnet(gw); err == nil {
			return ip.String(), nil
		}
	}
	return firstRoutableIPv4()
}

func addrOnGatewaySubnet(gw net.IP) (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
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
			if ipv4 == nil || !ipv4.IsGlobalUnicast() {
				continue
			}
			if ipnet.Contains(gw) {
				return ipv4, nil
			}
		}
	}
	return nil, fmt.Errorf("no interface on the gateway subnet %s", gw)
}

func firstRoutableIPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
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
			if ipv4 == nil || !ipv4.IsGlobalUnicast() {
				continue
			}
			return ipv4.String(), nil
		}
	}
	return "", errors.New("no routable IPv4 address found")
}
