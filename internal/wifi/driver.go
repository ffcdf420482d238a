// Package wifi simulates the radio driver in access point mode. It keeps its
// configuration in NVS and reports state changes on the event loop.
package wifi

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"

	"github.com/bigbag/papyrix-bringup/internal/eventbus"
)

// BaseWiFi is the event base for radio state changes.
const BaseWiFi = "WIFI_EVENT"

// NVS namespace and keys holding the AP configuration.
const (
	nvsNamespace = "wifi"
	keySSID      = "ap.ssid"
	keyPassword  = "ap.passwd"
	keyAuth      = "ap.authmode"
	keyHidden    = "ap.hidden"
	keyChannel   = "ap.chan"
	keyMaxConn   = "ap.max_conn"
)

var (
	ErrNotStarted = errors.New("access point not started")
	ErrTooManySta = errors.New("too many stations")
)

// EventID identifies a WIFI_EVENT.
type EventID int

const (
	EventAPStart EventID = iota
	EventAPStop
	EventAPStaConnected
	EventAPStaDisconnected
)

func (id EventID) String() string {
	switch id {
	case EventAPStart:
		return "ApStarted"
	case EventAPStop:
		return "ApStopped"
	case EventAPStaConnected:
		return "ApStaConnected"
	case EventAPStaDisconnected:
		return "ApStaDisconnected"
	default:
		return fmt.Sprintf("EventID(%d)", int(id))
	}
}

// Event is a radio state change.
type Event struct {
	ID  EventID
	MAC net.HardwareAddr
	AID int
}

// Base implements eventbus.Event.
func (e Event) Base() string { return BaseWiFi }

func (e Event) String() string {
	if e.MAC == nil {
		return e.ID.String()
	}
	return fmt.Sprintf("%s(%s, aid=%d)", e.ID, e.MAC, e.AID)
}

// Poster accepts events for asynchronous delivery.
type Poster interface {
	Post(eventbus.Event) error
}

// Netif is the AP network interface the driver drives.
type Netif interface {
	Up()
	Down()
	Lease(mac net.HardwareAddr) (netip.Addr, error)
	Release(mac net.HardwareAddr)
}

// Storage persists the driver configuration.
type Storage interface {
	Set(namespace, key string, value []byte) error
	Get(namespace, key string) ([]byte, error)
}

// Driver is the simulated radio.
type Driver struct {
	mu       sync.Mutex
	netif    Netif
	poster   Poster
	storage  Storage
	config   AccessPointConfig
	started  bool
	stations map[string]int
	nextAID  int
}

// New creates a stopped driver.
func New(netif Netif, poster Poster, storage Storage) (*Driver, error) {
	if netif == nil || poster == nil || storage == nil {
		return nil, fmt.Errorf("wifi driver needs netif, event loop and nvs")
	}
	return &Driver{
		netif:    netif,
		poster:   poster,
		storage:  storage,
		stations: make(map[string]int),
	}, nil
}

// Capabilities returns the modes the radio supports.
func (d *Driver) Capabilities() ([]Mode, error) {
	return []Mode{ModeClient, ModeAccessPoint, ModeMixed}, nil
}

// SetConfiguration validates cfg and (re)starts the access point with it.
// cfg is stored in NVS only once a running access point has stopped.
func (d *Driver) SetConfiguration(cfg AccessPointConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		if err := d.stopLocked(); err != nil {
			return err
		}
	}

	if err := d.persist(cfg); err != nil {
		return fmt.Errorf("failed to store configuration: %w", err)
	}

	d.config = cfg
	d.started = true
	d.netif.Up()

	return d.poster.Post(Event{ID: EventAPStart})
}

// Configuration returns the configuration stored in NVS.
func (d *Driver) Configuration() (AccessPointConfig, error) {
	var cfg AccessPointConfig

	ssid, err := d.storage.Get(nvsNamespace, keySSID)
	if err != nil {
		return cfg, err
	}
	password, err := d.storage.Get(nvsNamespace, keyPassword)
	if err != nil {
		return cfg, err
	}
	cfg.SSID = string(ssid)
	cfg.Password = string(password)

	var auth, hidden, channel int
	for _, v := range []struct {
		key string
		dst *int
	}{
		{keyAuth, &auth},
		{keyHidden, &hidden},
		{keyChannel, &channel},
		{keyMaxConn, &cfg.MaxConnections},
	} {
		raw, err := d.storage.Get(nvsNamespace, v.key)
		if err != nil {
			return cfg, err
		}
		if *v.dst, err = strconv.Atoi(string(raw)); err != nil {
			return cfg, fmt.Errorf("corrupt %s: %w", v.key, err)
		}
	}

	cfg.Auth = AuthMethod(auth)
	cfg.Hidden = hidden != 0
	cfg.Channel = uint8(channel)
	return cfg, nil
}

func (d *Driver) persist(cfg AccessPointConfig) error {
	hidden := 0
	if cfg.Hidden {
		hidden = 1
	}

	values := []struct {
		key   string
		value string
	}{
		{keySSID, cfg.SSID},
		{keyPassword, cfg.Password},
		{keyAuth, strconv.Itoa(int(cfg.Auth))},
		{keyHidden, strconv.Itoa(hidden)},
		{keyChannel, strconv.Itoa(int(cfg.Channel))},
		{keyMaxConn, strconv.Itoa(cfg.MaxConnections)},
	}

	for _, v := range values {
		if err := d.storage.Set(nvsNamespace, v.key, []byte(v.value)); err != nil {
			return err
		}
	}
	return nil
}

// Stop shuts the access point down, disconnecting every station.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return ErrNotStarted
	}
	return d.stopLocked()
}

func (d *Driver) stopLocked() error {
	var errs []error
	for mac, aid := range d.stations {
		hw, _ := net.ParseMAC(mac)
		errs = append(errs, d.poster.Post(Event{ID: EventAPStaDisconnected, MAC: hw, AID: aid}))
	}
	d.stations = make(map[string]int)
	d.nextAID = 0
	d.started = false
	d.netif.Down()

	errs = append(errs, d.poster.Post(Event{ID: EventAPStop}))
	return errors.Join(errs...)
}

// Associate simulates a station joining the access point. The station gets
// an association ID and a DHCP lease.
func (d *Driver) Associate(mac net.HardwareAddr) (netip.Addr, error) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return netip.Addr{}, ErrNotStarted
	}

	aid, ok := d.stations[mac.String()]
	if !ok {
		if len(d.stations) >= d.config.MaxConnections {
			d.mu.Unlock()
			return netip.Addr{}, fmt.Errorf("%w: limit is %d", ErrTooManySta, d.config.MaxConnections)
		}
		d.nextAID++
		aid = d.nextAID
		d.stations[mac.String()] = aid
	}
	d.mu.Unlock()

	if err := d.poster.Post(Event{ID: EventAPStaConnected, MAC: mac, AID: aid}); err != nil {
		return netip.Addr{}, err
	}
	return d.netif.Lease(mac)
}

// Disassociate simulates a station leaving.
func (d *Driver) Disassociate(mac net.HardwareAddr) error {
	d.mu.Lock()
	aid, ok := d.stations[mac.String()]
	delete(d.stations, mac.String())
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("station %s is not associated", mac)
	}

	d.netif.Release(mac)
	return d.poster.Post(Event{ID: EventAPStaDisconnected, MAC: mac, AID: aid})
}

// Stations returns the number of associated stations.
func (d *Driver) Stations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.stations)
}
