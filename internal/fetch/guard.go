// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// PRIVATE ADDRESS GUARD
// =============================================================================

// blockedCIDRs are private, loopback and reserved ranges refused when the
// guard is enabled.
var blockedCIDRs = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"100.64.0.0/10",
	"192.0.0.0/24",
	"198.18.0.0/15",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",

	"::1/128",
	"::/128",
	"64:ff9b::/96",
	"fc00::/7",
	"fe80::/10",
	"ff00::/8",
}

// blockedHosts are cloud metadata and local names.
var blockedHosts = []string{
	"metadata.google.internal",
	"metadata",
	"instance-data",
	"localhost",
}

var blockedNetworks []*net.IPNet

func init() {
	blockedNetworks = make([]*net.IPNet, 0, len(blockedCIDRs))
	for _, cidr := range blockedCIDRs {
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			blockedNetworks = append(blockedNetworks, network)
		}
	}
}

// Guard errors.
var (
	ErrBlocked       = errors.New("address is blocked (private/internal range)")
	ErrInvalidScheme = errors.New("only http and https schemes are allowed")
)

// isBlockedIP reports whether ip falls in a blocked range.
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// CheckURL validates the scheme and, when blockPrivate is set, rejects
// blocked hostnames and literal private addresses. Names that resolve to
// private addresses are caught later by the guarded dialer.
func CheckURL(u *url.URL, blockPrivate bool) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidScheme
	}
	if !blockPrivate {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	for _, blocked := range blockedHosts {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return fmt.Errorf("%w: %s", ErrBlocked, host)
		}
	}
	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlocked, host)
	}
	return nil
}

// guardedDialContext resolves the host itself and refuses to connect when
// any resolved address is blocked, which also defeats DNS rebinding.
func guardedDialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no addresses for %s", host)
		}
		for _, ip := range ips {
			if isBlockedIP(ip) {
				return nil, fmt.Errorf("%w: %s resolves to %s", ErrBlocked, host, ip)
			}
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
	}
}

func newDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}
