// Package netid answers which network the machine is on. The Monitor uses it
// to turn redirection off while a local hostname matches a configured
// domain, e.g. on the campus network where resources are reachable directly.
package netid

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
)

// Resolver returns the names the local machine is known by.
type Resolver interface {
	LocalHostnames(ctx context.Context) ([]string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) ([]string, error)

// LocalHostnames implements Resolver.
func (f ResolverFunc) LocalHostnames(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// SystemResolver reports the OS hostname plus the reverse DNS names of every
// non-loopback interface address.
type SystemResolver struct {
	// Lookup defaults to net.DefaultResolver.
	Lookup *net.Resolver
}

// LocalHostnames implements Resolver.
func (r SystemResolver) LocalHostnames(ctx context.Context) ([]string, error) {
	lookup := r.Lookup
	if lookup == nil {
		lookup = net.DefaultResolver
	}

	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		name = strings.TrimSuffix(strings.ToLower(name), ".")
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	if h, err := os.Hostname(); err == nil {
		add(h)
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		if len(names) > 0 {
			return names, nil
		}
		return nil, fmt.Errorf("failed to list interface addresses: %w", err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.IsLinkLocalUnicast() {
			continue
		}
		ptrs, err := lookup.LookupAddr(ctx, ipnet.IP.String())
		if err != nil {
			continue
		}
		for _, p := range ptrs {
			add(p)
		}
	}
	return names, nil
}
