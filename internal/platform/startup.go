package platform

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StartupRegistrar makes a program start when the user logs in.
type StartupRegistrar interface {
	CreateStartupEntry(target string) error
}

// XDGAutostart writes a freedesktop autostart entry.
type XDGAutostart struct {
	// ConfigHome overrides $XDG_CONFIG_HOME (defaults to ~/.config).
	ConfigHome string
	Name       string
}

// EntryPath returns the .desktop file location.
func (x XDGAutostart) EntryPath() (string, error) {
	home := x.ConfigHome
	if home == "" {
		home = os.Getenv("XDG_CONFIG_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determine user home: %w", err)
		}
		home = filepath.Join(userHome, ".config")
	}
	return filepath.Join(home, "autostart", strings.ToLower(x.name())+".desktop"), nil
}

func (x XDGAutostart) name() string {
	if x.Name == "" {
		return "CareLite"
	}
	return x.Name
}

// CreateStartupEntry writes (or refreshes) the autostart entry for target.
func (x XDGAutostart) CreateStartupEntry(target string) error {
	path, err := x.EntryPath()
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", x.name())
	fmt.Fprintf(&b, "Exec=%s\n", desktopExecQuote(target))
	fmt.Fprintf(&b, "Path=%s\n", filepath.Dir(target))
	b.WriteString("Terminal=false\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return writeFileAtomic(path, []byte(b.String()), 0o644)
}

// desktopExecQuote quotes an argument per the Desktop Entry Exec rules.
func desktopExecQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\\\`, `"`, `\\"`, "`", "\\\\`", `$`, `\\$`, `%`, `%%`)
	return `"` + r.Replace(s) + `"`
}

// LaunchAgent writes a per-user launchd agent with RunAtLoad.
type LaunchAgent struct {
	// Dir overrides ~/Library/LaunchAgents.
	Dir   string
	Label string
}

// PlistPath returns the agent plist location.
func (l LaunchAgent) PlistPath() (string, error) {
	dir := l.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determine user home: %w", err)
		}
		dir = filepath.Join(home, "Library", "LaunchAgents")
	}
	return filepath.Join(dir, l.label()+".plist"), nil
}

func (l LaunchAgent) label() string {
	if l.Label == "" {
		return "com.carelite.agent"
	}
	return l.Label
}

// CreateStartupEntry writes (or refreshes) the agent plist for target.
func (l LaunchAgent) CreateStartupEntry(target string) error {
	path, err := l.PlistPath()
	if err != nil {
		return err
	}
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	b.WriteString("<plist version=\"1.0\">\n<dict>\n")
	b.WriteString("  <key>Label</key>\n  <string>")
	if err := xml.EscapeText(&b, []byte(l.label())); err != nil {
		return err
	}
	b.WriteString("</string>\n  <key>ProgramArguments</key>\n  <array>\n    <string>")
	if err := xml.EscapeText(&b, []byte(target)); err != nil {
		return err
	}
	b.WriteString("</string>\n  </array>\n  <key>RunAtLoad</key>\n  <true/>\n</dict>\n</plist>\n")
	return writeFileAtomic(path, b.Bytes(), 0o644)
}
