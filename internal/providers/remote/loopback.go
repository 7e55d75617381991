package remote

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// LoopbackDetector decides whether an endpoint is this server itself
type LoopbackDetector struct {
	SelfHost string
	SelfPort string
	Resolver Resolver

	// InterfaceAddrs lists local addresses when SelfHost is unspecified
	InterfaceAddrs func() ([]net.Addr, error)
}

// NewLoopbackDetector creates a detector for the advertised address host:port
func NewLoopbackDetector(host, port string) *LoopbackDetector {
	return &LoopbackDetector{
		SelfHost:       host,
		SelfPort:       port,
		Resolver:       net.DefaultResolver,
		InterfaceAddrs: net.InterfaceAddrs,
	}
}

// Self returns the advertised host:port
func (d *LoopbackDetector) Self() string {
	return net.JoinHostPort(d.SelfHost, d.SelfPort)
}

// IsLoopback reports whether ep resolves to this server's address and port.
// Hosts are resolved, so aliases of the same address are caught.
// A target that cannot be resolved is not loopback; the call itself will fail.
func (d *LoopbackDetector) IsLoopback(ctx context.Context, ep Endpoint) (bool, error) {
	if ep.Port != d.SelfPort {
		return false, nil
	}
	if strings.EqualFold(ep.Host, d.SelfHost) {
		return true, nil
	}

	target, err := d.resolve(ctx, ep.Host)
	if err != nil {
		return false, nil
	}
	// connecting to an unspecified address reaches the local host
	for _, ip := range target {
		if ip.IsUnspecified() {
			target = append(target, net.IPv4(127, 0, 0, 1), net.IPv6loopback)
			break
		}
	}

	self, err := d.selfAddrs(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve own address %s: %w", d.Self(), err)
	}

	for _, ip := range target {
		for _, own := range self {
			if ip.Equal(own) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *LoopbackDetector) selfAddrs(ctx context.Context) ([]net.IP, error) {
	ip := net.ParseIP(d.SelfHost)
	if ip == nil || !ip.IsUnspecified() {
		return d.resolve(ctx, d.SelfHost)
	}

	// bound to every interface: any local address reaches us
	addrs := []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	if d.InterfaceAddrs == nil {
		return addrs, nil
	}
	ifaces, err := d.InterfaceAddrs()
	if err != nil {
		return addrs, nil
	}
	for _, a := range ifaces {
		if ipnet, ok := a.(*net.IPNet); ok {
			addrs = append(addrs, ipnet.IP)
		}
	}
	return addrs, nil
}

func (d *LoopbackDetector) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	resolver := d.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	found, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	ips := make([]net.IP, 0, len(found))
	for _, a := range found {
		ips = append(ips, a.IP)
	}
	return ips, nil
}
