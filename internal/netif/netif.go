// Package netif simulates the access point network interface: it owns the
// AP address and hands out DHCP leases to associated stations.
package netif

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/bigbag/papyrix-bringup/internal/eventbus"
)

// BaseIP is the event base for interface address events.
const BaseIP = "IP_EVENT"

// DefaultPrefix is the AP interface address and subnet.
var DefaultPrefix = netip.MustParsePrefix("192.168.71.1/24")

var (
	ErrDown          = errors.New("interface is down")
	ErrPoolExhausted = errors.New("DHCP pool exhausted")
)

// EventID identifies an IP_EVENT.
type EventID int

const (
	EventAPStaIPAssigned EventID = iota
)

// IPEvent reports an address assignment on the AP interface.
type IPEvent struct {
	ID  EventID
	MAC net.HardwareAddr
	IP  netip.Addr
}

// Base implements eventbus.Event.
func (e IPEvent) Base() string { return BaseIP }

func (e IPEvent) String() string {
	return fmt.Sprintf("ApStaIpAssigned(%s -> %s)", e.MAC, e.IP)
}

// Poster accepts events for asynchronous delivery.
type Poster interface {
	Post(eventbus.Event) error
}

// Stack is the AP network interface.
type Stack struct {
	mu     sync.Mutex
	poster Poster
	prefix netip.Prefix
	next   netip.Addr
	leases map[string]netip.Addr
	up     bool
}

// New creates the AP interface with the address in prefix.
func New(poster Poster, prefix netip.Prefix) (*Stack, error) {
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		return nil, fmt.Errorf("invalid AP prefix %s", prefix)
	}
	if prefix.Addr() == prefix.Masked().Addr() {
		return nil, fmt.Errorf("AP address %s is the network address", prefix.Addr())
	}
	if prefix.Bits() > 30 {
		return nil, fmt.Errorf("AP prefix %s leaves no room for stations", prefix)
	}

	return &Stack{
		poster: poster,
		prefix: prefix,
		next:   prefix.Masked().Addr().Next(),
		leases: make(map[string]netip.Addr),
	}, nil
}

// Address returns the AP's own address.
func (s *Stack) Address() netip.Addr {
	return s.prefix.Addr()
}

// Up brings the interface up.
func (s *Stack) Up() {
	s.mu.Lock()
	s.up = true
	s.mu.Unlock()
}

// Down takes the interface down and drops all leases.
func (s *Stack) Down() {
	s.mu.Lock()
	s.up = false
	s.leases = make(map[string]netip.Addr)
	s.next = s.prefix.Masked().Addr().Next()
	s.mu.Unlock()
}

// IsUp reports whether the interface is up.
func (s *Stack) IsUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up
}

// Lease assigns an address to the station and posts EventAPStaIPAssigned.
// A station that already holds a lease gets the same address again.
func (s *Stack) Lease(mac net.HardwareAddr) (netip.Addr, error) {
	s.mu.Lock()
	ip, err := s.lease(mac)
	s.mu.Unlock()
	if err != nil {
		return netip.Addr{}, err
	}

	ev := IPEvent{ID: EventAPStaIPAssigned, MAC: mac, IP: ip}
	if err := s.poster.Post(ev); err != nil {
		return ip, fmt.Errorf("failed to post %s: %w", ev, err)
	}
	return ip, nil
}

func (s *Stack) lease(mac net.HardwareAddr) (netip.Addr, error) {
	if !s.up {
		return netip.Addr{}, ErrDown
	}

	if ip, ok := s.leases[mac.String()]; ok {
		return ip, nil
	}

	for s.next == s.prefix.Addr() {
		s.next = s.next.Next()
	}
	// The last address of the subnet is the broadcast address.
	if !s.prefix.Contains(s.next.Next()) {
		return netip.Addr{}, ErrPoolExhausted
	}

	ip := s.next
	s.next = s.next.Next()
	s.leases[mac.String()] = ip
	return ip, nil
}

// Release frees the station's lease, if any.
func (s *Stack) Release(mac net.HardwareAddr) {
	s.mu.Lock()
	delete(s.leases, mac.String())
	s.mu.Unlock()
}

// Leases returns the number of active leases.
func (s *Stack) Leases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leases)
}
