// Package mdns announces the acquisition endpoint on the local network
// and browses for peers running one.
package mdns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/grandcat/zeroconf"
)

// Service is the mDNS service type acquisition endpoints register.
const Service = "_oep._tcp"

// Node represents a discovered acquisition endpoint.
type Node struct {
	Instance  string // Advertised name: "GoEphys on rig-2"
	Hostname  string // DNS hostname: "rig-2.local."
	Addresses []net.IP
	Port      int
	TXT       []string
}

// Announce registers the service and keeps it registered until the
// context is canceled. Registration is retried with exponential
// backoff; multicast sockets are commonly unavailable for a moment
// right after an interface comes up.
func Announce(ctx context.Context, instance string, port int, txt []string) error {
	var server *zeroconf.Server
	register := func() error {
		s, err := zeroconf.Register(instance, Service, "local.", port, txt, nil)
		if err != nil {
			return fmt.Errorf("register service: %w", err)
		}
		server = s
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(register, policy); err != nil {
		return fmt.Errorf("announce %q: %w", instance, err)
	}

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()
	return nil
}

// Discover performs a blocking mDNS browse for acquisition services.
// It returns cleaned and deduplicated entries.
func Discover(ctx context.Context, timeout time.Duration) ([]Node, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("resolver error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	resultMap := make(map[string]Node)

	// Consumer goroutine
	done := make(chan struct{})
	go func() {
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					close(done)
					return
				}
				if e == nil {
					continue
				}

				// Consolidate IPs (both v4 and v6)
				addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
				addrs = append(addrs, e.AddrIPv4...)
				addrs = append(addrs, e.AddrIPv6...)

				// Pick a stable key
				key := fmt.Sprintf("%s|%d", e.HostName, e.Port)

				resultMap[key] = Node{
					Instance:  cleanInstance(e.Instance),
					Hostname:  e.HostName,
					Addresses: addrs,
					Port:      e.Port,
					TXT:       append([]string{}, e.Text...),
				}

			case <-ctx.Done():
				close(done)
				return
			}
		}
	}()

	// Start browsing
	if err := resolver.Browse(ctx, Service, "local.", entries); err != nil {
		return nil, fmt.Errorf("browse error: %w", err)
	}

	<-done // wait for results

	// Convert map -> slice
	out := make([]Node, 0, len(resultMap))
	for _, n := range resultMap {
		out = append(out, n)
	}

	return out, nil
}

// cleanInstance removes Zeroconf escape sequences: "\ " => " "
func cleanInstance(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
