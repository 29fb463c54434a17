// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"net"
	"net/netip"
	"slices"

	applog "audiosync/internal/log"
)

// LimitedBroadcast is always included in the target list.
var LimitedBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// BroadcastTargets enumerates the host's active, non-loopback IPv4 interfaces
// and returns their directed broadcast addresses plus 255.255.255.255, all on
// port. Interfaces whose addresses cannot be read are skipped.
func BroadcastTargets(port int) ([]netip.AddrPort, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid UDP port %d", port)
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate network interfaces: %w", err)
	}

	var nets []*net.IPNet
	for _, iface := range interfaces {
		if !isInterfaceActive(iface) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			applog.WithError(err).WithField("interface", iface.Name).Debug("Skipping interface")
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok {
				nets = append(nets, ipNet)
			}
		}
	}

	addrs := BroadcastAddrs(nets)
	targets := make([]netip.AddrPort, 0, len(addrs))
	for _, a := range addrs {
		targets = append(targets, netip.AddrPortFrom(a, uint16(port)))
	}
	return targets, nil
}

// isInterfaceActive checks if a network interface is up and not a loopback interface.
func isInterfaceActive(iface net.Interface) bool {
	return iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0
}

// BroadcastAddrs returns ip | ^mask for every IPv4 network, plus the limited
// broadcast address, sorted and without duplicates. Loopback and IPv6
// networks are ignored.
func BroadcastAddrs(nets []*net.IPNet) []netip.Addr {
	out := []netip.Addr{LimitedBroadcast}
	for _, n := range nets {
		if a, ok := DirectedBroadcast(n); ok {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, netip.Addr.Compare)
	return slices.Compact(out)
}

// DirectedBroadcast returns the broadcast address of an IPv4 network. It
// reports false for loopback, IPv6 and point-to-point (/31, /32) networks.
func DirectedBroadcast(n *net.IPNet) (netip.Addr, bool) {
	ip4 := n.IP.To4()
	if ip4 == nil || ip4.IsLoopback() {
		return netip.Addr{}, false
	}
	mask := n.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return netip.Addr{}, false
	}
	// /31 and /32 have no broadcast address: ip|^mask is a host.
	if ones, bits := mask.Size(); bits == 0 || bits-ones < 2 {
		return netip.Addr{}, false
	}
	var b [4]byte
	for i := range b {
		b[i] = ip4[i] | ^mask[i]
	}
	return netip.AddrFrom4(b), true
}
