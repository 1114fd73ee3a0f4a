//go:build !linux && !netbsd

package xp

import (
	"errors"
	"runtime"
)

var ErrUnsupportedPlatform = errors.New("XP device is not available on " + runtime.GOOS)

func Open(opts Options) (*Device, error) {
	return nil, ErrUnsupportedPlatform
}
