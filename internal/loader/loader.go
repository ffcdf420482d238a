// Package loader is a read-only client for the ESP ROM serial bootloader.
package loader

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bigbag/papyrix-bringup/internal/log"
	"github.com/bigbag/papyrix-bringup/internal/partition"
	"github.com/bigbag/papyrix-bringup/internal/protocol"
	"github.com/bigbag/papyrix-bringup/internal/slip"
)

// ErrTimeout is returned when the ROM does not answer in time.
var ErrTimeout = errors.New("timeout waiting for response")

// Port is the serial link the loader talks over. *serial.Port satisfies it.
type Port interface {
	Write(data []byte) (int, error)
	ReadWithTimeout(buf []byte, timeout time.Duration) (int, error)
	Flush() error
	ResetToBootloader() error
	HardReset() error
}

// ProgressCallback is called to report read progress in bytes.
type ProgressCallback func(current, total int)

// Chip identifies the connected device.
type Chip struct {
	ID   uint32
	Name string
}

type timeouts struct {
	sync    time.Duration
	drain   time.Duration
	command time.Duration
	poll    time.Duration
}

var defaultTimeouts = timeouts{
	sync:    500 * time.Millisecond,
	drain:   100 * time.Millisecond,
	command: 5 * time.Second,
	poll:    100 * time.Millisecond,
}

const syncAttempts = 10

// Loader drives the ROM bootloader over a Port.
type Loader struct {
	port     Port
	framer   slip.Framer
	progress ProgressCallback
	timeouts timeouts
	logger   zerolog.Logger
}

// New creates a Loader for the given port.
func New(port Port) *Loader {
	return &Loader{
		port:     port,
		timeouts: defaultTimeouts,
		logger:   log.Component("loader"),
	}
}

// SetProgressCallback sets the progress callback function.
func (l *Loader) SetProgressCallback(cb ProgressCallback) {
	l.progress = cb
}

func (l *Loader) reportProgress(current, total int) {
	if l.progress != nil {
		l.progress(current, total)
	}
}

// Connect resets the chip into the bootloader, syncs and attaches SPI flash.
func (l *Loader) Connect() error {
	if err := l.port.ResetToBootloader(); err != nil {
		return fmt.Errorf("failed to reset into bootloader: %w", err)
	}

	if err := l.Sync(); err != nil {
		return fmt.Errorf("failed to sync with bootloader: %w", err)
	}

	if _, err := l.command(protocol.CmdSpiAttach, protocol.SpiAttachData()); err != nil {
		return fmt.Errorf("failed to attach SPI flash: %w", err)
	}

	return nil
}

// Sync sends SYNC until the ROM answers, then drains the extra replies the
// ROM sends for a single SYNC.
func (l *Loader) Sync() error {
	frame := slip.Encode(protocol.NewRequest(protocol.CmdSync, protocol.SyncData()).Encode())

	for attempt := 0; attempt < syncAttempts; attempt++ {
		l.port.Flush()
		l.framer.Reset()

		if _, err := l.port.Write(frame); err != nil {
			l.logger.Debug().Err(err).Int("attempt", attempt).Msg("sync write failed")
			continue
		}

		resp, err := l.readResponse(l.timeouts.sync)
		if err != nil {
			continue
		}

		if resp.Command == protocol.CmdSync && resp.IsSuccess() {
			for i := 0; i < 7; i++ {
				if _, err := l.readResponse(l.timeouts.drain); err != nil {
					break
				}
			}
			l.logger.Debug().Int("attempt", attempt).Msg("synced")
			return nil
		}
	}

	return fmt.Errorf("sync failed after %d attempts", syncAttempts)
}

// Chip identifies the chip. GET_SECURITY_INFO is tried first; ROMs that do
// not report a chip ID are identified by the chip detect magic register.
func (l *Loader) Chip() (Chip, error) {
	resp, err := l.command(protocol.CmdGetSecurityInfo, nil)
	if err == nil {
		info, perr := protocol.ParseSecurityInfo(resp.Data)
		if perr == nil && info.ChipID != 0 {
			return Chip{ID: info.ChipID, Name: protocol.ChipName(info.ChipID)}, nil
		}
	}

	resp, err = l.command(protocol.CmdReadReg, protocol.ReadRegData(protocol.ChipDetectMagicAddr))
	if err != nil {
		return Chip{}, fmt.Errorf("failed to read chip magic: %w", err)
	}

	name, ok := protocol.ChipNameFromMagic(resp.Value)
	if !ok {
		return Chip{}, fmt.Errorf("unknown chip magic 0x%08X", resp.Value)
	}
	return Chip{Name: name}, nil
}

// ReadFlash reads size bytes starting at address in READ_FLASH_SLOW chunks.
func (l *Loader) ReadFlash(address, size uint32) ([]byte, error) {
	data := make([]byte, 0, size)

	for offset := uint32(0); offset < size; {
		n := min(uint32(protocol.ReadFlashChunk), size-offset)

		resp, err := l.command(protocol.CmdReadFlashSlow, protocol.ReadFlashSlowData(address+offset, n))
		if err != nil {
			return nil, fmt.Errorf("read flash at 0x%X failed: %w", address+offset, err)
		}
		if uint32(len(resp.Data)) < n {
			return nil, fmt.Errorf("read flash at 0x%X: short block (%d of %d bytes)", address+offset, len(resp.Data), n)
		}

		data = append(data, resp.Data[:n]...)
		offset += n
		l.reportProgress(int(offset), int(size))
	}

	return data, nil
}

// ReadPartitionTable reads and parses the partition table region.
func (l *Loader) ReadPartitionTable() (*partition.BinaryTable, error) {
	image, err := l.ReadFlash(protocol.PartitionTableAddress, protocol.PartitionTableSize)
	if err != nil {
		return nil, err
	}

	table, err := partition.ParseTable(image)
	if err != nil {
		return nil, fmt.Errorf("failed to parse partition table: %w", err)
	}
	return table, nil
}

// HardReset restarts the chip into its application.
func (l *Loader) HardReset() error {
	return l.port.HardReset()
}

// command sends a request and waits for the matching successful response.
// Replies to other commands, like late SYNC echoes, are skipped.
func (l *Loader) command(cmd byte, data []byte) (*protocol.Response, error) {
	frame := slip.Encode(protocol.NewRequest(cmd, data).Encode())

	if _, err := l.port.Write(frame); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(l.timeouts.command)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}

		resp, err := l.readResponse(remaining)
		if err != nil {
			return nil, err
		}
		if resp.Command != cmd {
			l.logger.Debug().Uint8("got", resp.Command).Uint8("want", cmd).Msg("skipping stale response")
			continue
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("command 0x%02X failed: %s", cmd, resp.ErrorString())
		}
		return resp, nil
	}
}

// readResponse reads and decodes the next response frame.
func (l *Loader) readResponse(timeout time.Duration) (*protocol.Response, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 256)

	for {
		for {
			packet, ok := l.framer.Next()
			if !ok {
				break
			}
			resp, err := protocol.DecodeResponse(packet, protocol.ROMStatusBytes)
			if err != nil {
				l.logger.Debug().Err(err).Msg("dropping malformed frame")
				continue
			}
			return resp, nil
		}

		wait := min(l.timeouts.poll, time.Until(deadline))
		if wait <= 0 {
			return nil, ErrTimeout
		}

		n, err := l.port.ReadWithTimeout(buf, wait)
		if n > 0 {
			l.framer.Write(buf[:n])
		}
		if err != nil {
			return nil, fmt.Errorf("serial read failed: %w", err)
		}
	}
}
