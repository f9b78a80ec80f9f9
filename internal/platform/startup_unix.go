//go:build unix

package platform

import (
	"fmt"
	"runtime"
)

type unsupportedRegistrar struct{}

func (unsupportedRegistrar) CreateStartupEntry(string) error {
	return fmt.Errorf("startup entry on %s: %w", runtime.GOOS, ErrUnsupported)
}

// NewStartupRegistrar returns the registrar for the running OS.
func NewStartupRegistrar() StartupRegistrar {
	switch runtime.GOOS {
	case "darwin":
		return LaunchAgent{}
	case "linux", "freebsd", "openbsd", "netbsd":
		return XDGAutostart{}
	default:
		return unsupportedRegistrar{}
	}
}
