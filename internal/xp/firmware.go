package xp

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

const (
	FirmwareMinSize = 0x0200
	FirmwareMaxSize = 0xfe00
)

// firmwareMagic sits at the start of the variable area of a valid image.
var firmwareMagic = []byte("LUNAPSG\x00")

var (
	ErrFirmwareSize  = errors.New("invalid firmware size")
	ErrFirmwareMagic = errors.New("firmware magic mismatch")
	ErrNoFirmware    = errors.New("no firmware image configured")
)

// Firmware is a validated XP program image.
type Firmware []byte

// ParseFirmware validates an image held in memory.
func ParseFirmware(data []byte) (Firmware, error) {
	if len(data) < FirmwareMinSize || len(data) > FirmwareMaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFirmwareSize, len(data))
	}
	if !bytes.Equal(data[RegMagic:RegMagic+len(firmwareMagic)], firmwareMagic) {
		return nil, ErrFirmwareMagic
	}
	return Firmware(data), nil
}

// checkFirmware rejects an image that did not come through ParseFirmware
// intact.
func checkFirmware(fw Firmware) error {
	if len(fw) == 0 {
		return ErrNoFirmware
	}
	_, err := ParseFirmware(fw)
	return err
}

// LoadFirmware reads and validates an image from disk.
func LoadFirmware(path string) (Firmware, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("firmware: %w", err)
	}
	fw, err := ParseFirmware(data)
	if err != nil {
		return nil, fmt.Errorf("firmware %s: %w", path, err)
	}
	return fw, nil
}
