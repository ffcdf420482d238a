package bringup

import (
	"context"
	"net"
	"net/netip"

	"github.com/bigbag/papyrix-bringup/internal/eventbus"
	"github.com/bigbag/papyrix-bringup/internal/httpd"
	"github.com/bigbag/papyrix-bringup/internal/netif"
	"github.com/bigbag/papyrix-bringup/internal/nvs"
	"github.com/bigbag/papyrix-bringup/internal/partition"
	"github.com/bigbag/papyrix-bringup/internal/wifi"
)

// EventLoop is the system event loop the coordinator subscribes to.
type EventLoop interface {
	Subscribe(base string, h eventbus.Handler) (*eventbus.Subscription, error)
	Post(ev eventbus.Event) error
	Close() error
}

// Radio is the wireless driver.
type Radio interface {
	Capabilities() ([]wifi.Mode, error)
	SetConfiguration(cfg wifi.AccessPointConfig) error
	Stop() error
}

// Responder is a running HTTP server.
type Responder interface {
	Addr() net.Addr
	Shutdown(ctx context.Context) error
}

// Platform creates the collaborators the bring-up sequence drives. Every
// field must be set; DefaultPlatform wires the in-process implementations.
type Platform struct {
	NewEventLoop func(queueSize int) (EventLoop, error)
	NewNetif     func(poster netif.Poster, prefix netip.Prefix) (wifi.Netif, error)
	OpenNVS      func() (wifi.Storage, error)
	NewRadio     func(n wifi.Netif, poster wifi.Poster, storage wifi.Storage) (Radio, error)
	Partitions   func() (partition.Table, error)
	Serve        func(reg *httpd.Registry, cfg httpd.Config) (Responder, error)
}

// DefaultPlatform returns the host-simulated platform. The partition table
// comes from tables.
func DefaultPlatform(tables func() (partition.Table, error)) Platform {
	return Platform{
		NewEventLoop: func(queueSize int) (EventLoop, error) {
			return eventbus.New(queueSize), nil
		},
		NewNetif: func(poster netif.Poster, prefix netip.Prefix) (wifi.Netif, error) {
			return netif.New(poster, prefix)
		},
		OpenNVS: func() (wifi.Storage, error) {
			return nvs.Open()
		},
		NewRadio: func(n wifi.Netif, poster wifi.Poster, storage wifi.Storage) (Radio, error) {
			return wifi.New(n, poster, storage)
		},
		Partitions: tables,
		Serve: func(reg *httpd.Registry, cfg httpd.Config) (Responder, error) {
			return reg.Start(cfg)
		},
	}
}
