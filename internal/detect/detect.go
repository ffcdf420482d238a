// Package detect probes serial ports for an ESP ROM bootloader.
package detect

import (
	"errors"
	"fmt"

	"github.com/bigbag/papyrix-bringup/internal/loader"
	"github.com/bigbag/papyrix-bringup/internal/log"
	"github.com/bigbag/papyrix-bringup/internal/serial"
)

// ErrNoDevice is returned when no port answers as a ROM bootloader.
var ErrNoDevice = errors.New("no ESP32 device found")

// Result represents a detected ESP32 device.
type Result struct {
	Port     string
	Bridge   string
	ChipID   uint32
	ChipName string
}

// Prober connects to one port and identifies the chip behind it.
type Prober func(portName string, baudRate int) (*Result, error)

// Detector scans ports with a Prober.
type Detector struct {
	list  func() ([]serial.PortInfo, error)
	probe Prober
}

// New returns a Detector over the host's serial ports.
func New() *Detector {
	return &Detector{list: serial.ListPortDetails, probe: probePort}
}

// First returns the first port that answers, trying known USB bridges first.
func (d *Detector) First(baudRate int) (*Result, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("no serial ports found")
	}

	var lastErr error
	for _, p := range ports {
		result, err := d.probe(p.Name, baudRate)
		if err != nil {
			log.Debug().Err(err).Str("port", p.Name).Msg("probe failed")
			lastErr = err
			continue
		}
		result.Bridge = p.Bridge()
		return result, nil
	}

	return nil, fmt.Errorf("%w (last error: %w)", ErrNoDevice, lastErr)
}

// All probes every port and returns the devices that answered.
func (d *Detector) All(baudRate int) ([]Result, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	var results []Result
	for _, p := range ports {
		result, err := d.probe(p.Name, baudRate)
		if err != nil {
			log.Debug().Err(err).Str("port", p.Name).Msg("probe failed")
			continue
		}
		result.Bridge = p.Bridge()
		results = append(results, *result)
	}

	return results, nil
}

// OnPort probes a single named port.
func (d *Detector) OnPort(portName string, baudRate int) (*Result, error) {
	return d.probe(portName, baudRate)
}

func probePort(portName string, baudRate int) (*Result, error) {
	port, err := serial.Open(portName, baudRate)
	if err != nil {
		return nil, err
	}
	defer port.Close()

	l := loader.New(port)
	if err := l.Connect(); err != nil {
		return nil, err
	}
	defer l.HardReset()

	chip, err := l.Chip()
	if err != nil {
		// Sync worked, so a ROM loader is there.
		return &Result{Port: portName, ChipName: "ESP32 (unknown variant)"}, nil
	}

	return &Result{
		Port:     portName,
		ChipID:   chip.ID,
		ChipName: chip.Name,
	}, nil
}
