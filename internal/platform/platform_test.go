package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCreateExclusiveRejectsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.partial")

	f, err := CreateExclusive(path)
	if err != nil {
		t.Fatalf("CreateExclusive() error: %v", err)
	}
	if _, err := f.Write([]byte("payload")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if second, err := CreateExclusive(path); err == nil {
		_ = second.Close()
		t.Fatal("second CreateExclusive on the same path should fail")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q", data)
	}
}

func TestWaitForExit(t *testing.T) {
	ctx := context.Background()

	if err := WaitForExit(ctx, os.Getpid(), 2, time.Millisecond); err == nil {
		t.Fatal("own process never exits; expected an error")
	}
	if err := WaitForExit(ctx, 0, 5, time.Hour); err != nil {
		t.Fatalf("pid 0 should count as gone: %v", err)
	}
	if !ProcessRunning(ctx, os.Getpid()) {
		t.Fatal("own pid should be running")
	}
}

func TestWaitForExitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitForExit(ctx, os.Getpid(), 10, time.Hour)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestXDGAutostart(t *testing.T) {
	home := t.TempDir()
	reg := XDGAutostart{ConfigHome: home}

	target := "/opt/care lite/carelite"
	if err := reg.CreateStartupEntry(target); err != nil {
		t.Fatalf("CreateStartupEntry() error: %v", err)
	}
	// Refreshing an existing entry overwrites it.
	if err := reg.CreateStartupEntry(target); err != nil {
		t.Fatalf("second CreateStartupEntry() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(home, "autostart", "carelite.desktop"))
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	text := string(data)
	for _, want := range []string{"[Desktop Entry]", `Exec="/opt/care lite/carelite"`, "Name=CareLite", "Type=Application"} {
		if !strings.Contains(text, want) {
			t.Errorf("entry missing %q:\n%s", want, text)
		}
	}
}

func TestDesktopExecQuote(t *testing.T) {
	got := desktopExecQuote(`/tmp/a"b$c`)
	want := `"/tmp/a\\"b\\$c"`
	if got != want {
		t.Fatalf("desktopExecQuote = %s, want %s", got, want)
	}
}

func TestLaunchAgent(t *testing.T) {
	dir := t.TempDir()
	reg := LaunchAgent{Dir: dir}
	if err := reg.CreateStartupEntry("/Applications/Care & Lite/carelite"); err != nil {
		t.Fatalf("CreateStartupEntry() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "com.carelite.agent.plist"))
	if err != nil {
		t.Fatalf("read plist: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "<string>/Applications/Care &amp; Lite/carelite</string>") {
		t.Errorf("target not escaped:\n%s", text)
	}
	if !strings.Contains(text, "<key>RunAtLoad</key>") {
		t.Errorf("missing RunAtLoad:\n%s", text)
	}
}

func TestUnixElevatorCommand(t *testing.T) {
	found := func(names ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			for _, n := range names {
				if n == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		}
	}

	tests := []struct {
		name     string
		goos     string
		euid     int
		tools    []string
		wantProg string
		wantErr  bool
	}{
		{name: "root runs directly", goos: "linux", euid: 0, wantProg: "sh"},
		{name: "pkexec preferred", goos: "linux", euid: 1000, tools: []string{"pkexec", "sudo"}, wantProg: "pkexec"},
		{name: "osascript on darwin", goos: "darwin", euid: 501, tools: []string{"osascript", "sudo"}, wantProg: "osascript"},
		{name: "sudo fallback", goos: "linux", euid: 1000, tools: []string{"sudo"}, wantProg: "sudo"},
		{name: "nothing available", goos: "linux", euid: 1000, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := unixElevator{
				goos:     tt.goos,
				euid:     func() int { return tt.euid },
				lookPath: found(tt.tools...),
			}
			prog, args, err := e.command("sh", []string{"/tmp/carelite_update.sh"})
			if tt.wantErr {
				if !errors.Is(err, ErrElevationCancelled) {
					t.Fatalf("expected ErrElevationCancelled, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("command() error: %v", err)
			}
			if prog != tt.wantProg {
				t.Fatalf("program = %q, want %q", prog, tt.wantProg)
			}
			if !strings.Contains(strings.Join(args, " "), "carelite_update.sh") {
				t.Fatalf("script path missing from args %v", args)
			}
		})
	}
}

func TestCommandNotifier(t *testing.T) {
	var gotName string
	var gotArgs []string
	n := commandNotifier{
		goos:     "linux",
		lookPath: func(string) (string, error) { return "/usr/bin/notify-send", nil },
		run: func(name string, args ...string) error {
			gotName, gotArgs = name, args
			return nil
		},
	}
	if err := n.Notify("CareLite Update", "An error occurred"); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	if gotName != "notify-send" || gotArgs[len(gotArgs)-1] != "An error occurred" {
		t.Fatalf("unexpected command %s %v", gotName, gotArgs)
	}

	missing := commandNotifier{
		goos:     "linux",
		lookPath: func(string) (string, error) { return "", errors.New("nope") },
	}
	if err := missing.Notify("t", "m"); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}

	mac := commandNotifier{goos: "darwin"}
	name, args, err := mac.command(`Say "hi"`, "done")
	if err != nil || name != "osascript" || !strings.Contains(args[1], `Say \"hi\"`) {
		t.Fatalf("darwin command = %s %v (%v)", name, args, err)
	}
}
