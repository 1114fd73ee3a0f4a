//go:build linux || netbsd

package xp

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// xpDownload mirrors struct xp_download from <machine/xpio.h>.
type xpDownload struct {
	size uint32
	data *byte
}

var xpiocDownload = iow('x', 1, unsafe.Sizeof(xpDownload{}))

// Open opens the device, downloads the firmware, maps the shared window and
// programs rate and encoding.
func Open(opts Options) (*Device, error) {
	if err := checkFirmware(opts.Firmware); err != nil {
		return nil, err
	}
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := download(fd, opts.Firmware); err != nil {
		unix.Close(fd)
		return nil, err
	}
	log.Debug().Int("size", len(opts.Firmware)).Msg("XP firmware downloaded")

	mem, err := unix.Mmap(fd, 0, WindowSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	release := func() error {
		return errors.Join(unix.Munmap(mem), unix.Close(fd))
	}
	d, err := newDevice(newMemWindow(mem), release, opts)
	if err != nil {
		return nil, errors.Join(err, release())
	}
	return d, nil
}

func download(fd int, fw Firmware) error {
	dl := xpDownload{size: uint32(len(fw)), data: &fw[0]}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), xpiocDownload, uintptr(unsafe.Pointer(&dl)))
	runtime.KeepAlive(fw)
	if errno != 0 {
		return fmt.Errorf("ioctl XPIOCDOWNLD: %w", errno)
	}
	return nil
}
