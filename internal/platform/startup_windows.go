//go:build windows

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"golang.org/x/sys/windows"
)

// ShortcutRegistrar creates a .lnk in the user's Startup folder through the
// WScript.Shell COM object.
type ShortcutRegistrar struct {
	Name string
}

// NewStartupRegistrar returns the registrar for the running OS.
func NewStartupRegistrar() StartupRegistrar {
	return ShortcutRegistrar{Name: "CareLite"}
}

func startupFolder() (string, error) {
	dir, err := windows.KnownFolderPath(windows.FOLDERID_Startup, 0)
	if err == nil && dir != "" {
		return dir, nil
	}
	appData := os.Getenv("APPDATA")
	if appData == "" {
		return "", fmt.Errorf("locate startup folder: %w", err)
	}
	return filepath.Join(appData, "Microsoft", "Windows", "Start Menu", "Programs", "Startup"), nil
}

// CreateStartupEntry writes (or refreshes) the shortcut for target.
func (s ShortcutRegistrar) CreateStartupEntry(target string) error {
	dir, err := startupFolder()
	if err != nil {
		return err
	}
	linkPath := filepath.Join(dir, s.Name+".lnk")

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		// S_FALSE: COM was already initialized on this thread.
		if !errors.As(err, &oleErr) || oleErr.Code() != 1 {
			return fmt.Errorf("initialize COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return fmt.Errorf("create WScript.Shell: %w", err)
	}
	defer unknown.Release()

	shell, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("query WScript.Shell: %w", err)
	}
	defer shell.Release()

	result, err := oleutil.CallMethod(shell, "CreateShortcut", linkPath)
	if err != nil {
		return fmt.Errorf("create shortcut: %w", err)
	}
	shortcut := result.ToIDispatch()
	defer shortcut.Release()

	props := []struct {
		name  string
		value string
	}{
		{"TargetPath", target},
		{"WorkingDirectory", filepath.Dir(target)},
		{"Description", s.Name},
	}
	for _, p := range props {
		if _, err := oleutil.PutProperty(shortcut, p.name, p.value); err != nil {
			return fmt.Errorf("set shortcut %s: %w", p.name, err)
		}
	}
	if _, err := oleutil.CallMethod(shortcut, "Save"); err != nil {
		return fmt.Errorf("save shortcut: %w", err)
	}
	return nil
}
