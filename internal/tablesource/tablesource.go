// Package tablesource resolves where the partition table is read from: the
// image embedded in the binary, an image file, or a device's flash.
package tablesource

import (
	"fmt"
	"os"

	"github.com/bigbag/papyrix-bringup/embedded"
	"github.com/bigbag/papyrix-bringup/internal/detect"
	"github.com/bigbag/papyrix-bringup/internal/loader"
	"github.com/bigbag/papyrix-bringup/internal/log"
	"github.com/bigbag/papyrix-bringup/internal/partition"
	"github.com/bigbag/papyrix-bringup/internal/serial"
)

// Source names accepted by Open. Anything else is a file path.
const (
	Embedded = "embedded"
	Device   = "device"
)

// DeviceOptions selects the serial link for the device source.
type DeviceOptions struct {
	Port     string // auto-detect when empty
	BaudRate int
	Progress loader.ProgressCallback
}

// Open returns a loader for the named source. Nothing is read until the
// returned function is called.
func Open(name string, opts DeviceOptions) func() (partition.Table, error) {
	switch name {
	case Embedded, "":
		return func() (partition.Table, error) {
			return parse(embedded.Partitions(), "embedded image")
		}
	case Device:
		return func() (partition.Table, error) {
			return readDevice(opts)
		}
	default:
		return func() (partition.Table, error) {
			data, err := os.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("failed to read partition table file: %w", err)
			}
			return parse(data, name)
		}
	}
}

func parse(data []byte, origin string) (partition.Table, error) {
	table, err := partition.ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", origin, err)
	}
	log.Debug().Str("source", origin).Int("entries", table.Len()).Bool("md5", table.Verified()).Msg("Partition table loaded")
	return table, nil
}

func readDevice(opts DeviceOptions) (partition.Table, error) {
	portName := opts.Port
	if portName == "" {
		result, err := detect.New().First(opts.BaudRate)
		if err != nil {
			return nil, fmt.Errorf("device detection failed: %w", err)
		}
		portName = result.Port
		log.Info().Str("port", portName).Str("chip", result.ChipName).Msg("Device found")
	}

	port, err := serial.Open(portName, opts.BaudRate)
	if err != nil {
		return nil, err
	}
	defer port.Close()

	l := loader.New(port)
	l.SetProgressCallback(opts.Progress)
	if err := l.Connect(); err != nil {
		return nil, err
	}
	defer func() {
		if err := l.HardReset(); err != nil {
			log.Warn().Err(err).Msg("Hard reset failed")
		}
	}()

	return l.ReadPartitionTable()
}
