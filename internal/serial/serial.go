// Package serial wraps go.bug.st/serial with the line control the ESP ROM
// loader needs.
package serial

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultReadTimeout is restored after every timed read.
const DefaultReadTimeout = 100 * time.Millisecond

// Port wraps a serial port with ESP32-specific functionality.
type Port struct {
	port  serial.Port
	sleep func(time.Duration)
}

// Open opens a serial port at baudRate, 8N1.
func Open(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &Port{port: port, sleep: time.Sleep}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Write writes data to the serial port.
func (p *Port) Write(data []byte) (int, error) {
	return p.port.Write(data)
}

// ReadWithTimeout reads whatever arrives within timeout. A read that times
// out returns 0 bytes and no error.
func (p *Port) ReadWithTimeout(buf []byte, timeout time.Duration) (int, error) {
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	defer p.port.SetReadTimeout(DefaultReadTimeout)

	return p.port.Read(buf)
}

// Flush discards any buffered input.
func (p *Port) Flush() error {
	return p.port.ResetInputBuffer()
}

// SetDTR sets the DTR signal.
func (p *Port) SetDTR(value bool) error {
	return p.port.SetDTR(value)
}

// SetRTS sets the RTS signal.
func (p *Port) SetRTS(value bool) error {
	return p.port.SetRTS(value)
}

// ResetToBootloader pulses EN while holding GPIO0 low through the usual
// two-transistor auto-reset circuit, then drops stale input.
func (p *Port) ResetToBootloader() error {
	if err := runSequence(p, bootloaderReset, p.sleep); err != nil {
		return err
	}
	p.Flush()
	p.sleep(100 * time.Millisecond)
	return nil
}

// HardReset restarts the chip into the application.
func (p *Port) HardReset() error {
	return runSequence(p, hardReset, p.sleep)
}

// lines is the modem-control surface a reset sequence drives.
type lines interface {
	SetDTR(bool) error
	SetRTS(bool) error
}

// signalStep sets RTS then DTR and holds them for hold. The drivers invert
// both lines: RTS high pulls EN low, DTR high pulls GPIO0 low.
type signalStep struct {
	rts, dtr bool
	hold     time.Duration
}

var bootloaderReset = []signalStep{
	{rts: true, dtr: false, hold: 100 * time.Millisecond}, // chip in reset
	{rts: false, dtr: true, hold: 50 * time.Millisecond},  // run with GPIO0 low
	{rts: true, dtr: false, hold: 50 * time.Millisecond},
	{rts: false, dtr: false},
}

var hardReset = []signalStep{
	{rts: true, dtr: false, hold: 100 * time.Millisecond},
	{rts: false, dtr: false},
}

func runSequence(l lines, steps []signalStep, sleep func(time.Duration)) error {
	for i, s := range steps {
		if err := l.SetRTS(s.rts); err != nil {
			return fmt.Errorf("reset step %d: failed to set RTS: %w", i, err)
		}
		if err := l.SetDTR(s.dtr); err != nil {
			return fmt.Errorf("reset step %d: failed to set DTR: %w", i, err)
		}
		if s.hold > 0 {
			sleep(s.hold)
		}
	}
	return nil
}

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// Bridge returns the USB bridge vendor for ports that commonly front an
// ESP32 board, or "" when the port is not recognised.
func (i PortInfo) Bridge() string {
	if !i.IsUSB {
		return ""
	}
	return usbBridges[strings.ToUpper(i.VID)]
}

var usbBridges = map[string]string{
	"303A": "Espressif USB-JTAG",
	"10C4": "Silicon Labs CP210x",
	"1A86": "WCH CH34x",
	"0403": "FTDI",
}

// ListPortDetails returns available ports with their USB identity. Ports
// fronted by a known ESP32 bridge are listed first.
func ListPortDetails() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate ports: %w", err)
	}

	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	return SortCandidates(infos), nil
}

// SortCandidates moves ports with a known bridge to the front, keeping the
// relative order within each group.
func SortCandidates(infos []PortInfo) []PortInfo {
	sorted := make([]PortInfo, 0, len(infos))
	for _, i := range infos {
		if i.Bridge() != "" {
			sorted = append(sorted, i)
		}
	}
	for _, i := range infos {
		if i.Bridge() == "" {
			sorted = append(sorted, i)
		}
	}
	return sorted
}
