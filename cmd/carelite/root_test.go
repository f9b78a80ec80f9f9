package main

import (
	"errors"
	"strings"
	"testing"

	"carelite/internal/config"
)

func TestConfigOverrides(t *testing.T) {
	tests := []struct {
		name    string
		opts    rootOptions
		changed []string
		want    map[string]any
		wantErr string
	}{
		{
			name: "nothing changed",
			opts: rootOptions{strategy: "bogus"},
			want: map[string]any{},
		},
		{
			name:    "strategy normalised",
			opts:    rootOptions{strategy: " Installer "},
			changed: []string{"strategy"},
			want:    map[string]any{config.KeyUpdateStrategy: "installer"},
		},
		{
			name:    "unknown strategy",
			opts:    rootOptions{strategy: "swap"},
			changed: []string{"strategy"},
			wantErr: "unknown strategy",
		},
		{
			name:    "schedule off",
			opts:    rootOptions{schedule: "off"},
			changed: []string{"schedule"},
			want:    map[string]any{config.KeyUpdateSchedule: "off"},
		},
		{
			name:    "invalid schedule",
			opts:    rootOptions{schedule: "every tuesday"},
			changed: []string{"schedule"},
			wantErr: "invalid check schedule",
		},
		{
			name:    "staging dir and auto approve",
			opts:    rootOptions{stagingDir: " /tmp/stage ", autoApprove: true},
			changed: []string{"staging-dir", "yes"},
			want: map[string]any{
				config.KeyUpdateStagingDir:  "/tmp/stage",
				config.KeyUpdateAutoApprove: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := func(name string) bool {
				for _, c := range tt.changed {
					if c == name {
						return true
					}
				}
				return false
			}
			got, err := tt.opts.configOverrides(changed)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("configOverrides() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("configOverrides() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("configOverrides() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestRootArgs(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.Args(cmd, []string{"stray"}); err == nil {
		t.Error("resident mode should reject positional args")
	}
	if err := cmd.Args(cmd, nil); err != nil {
		t.Errorf("resident mode args error: %v", err)
	}

	cmd = newRootCmd()
	if err := cmd.ParseFlags([]string{"--apply-update"}); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Args(cmd, []string{"/opt/carelite/carelite"}); err == nil {
		t.Error("--apply-update should require two paths")
	}
	if err := cmd.Args(cmd, []string{"/opt/carelite/carelite", "/tmp/update_2.1.0"}); err != nil {
		t.Errorf("--apply-update args error: %v", err)
	}
}

func TestRootFlagsAndCommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"apply-update", "register-startup"} {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("flag --%s missing", name)
		}
		if !f.Hidden {
			t.Errorf("flag --%s should be hidden", name)
		}
	}
	for _, name := range []string{"check", "history", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

type fakeRegistrar struct {
	target string
	err    error
}

func (f *fakeRegistrar) CreateStartupEntry(target string) error {
	f.target = target
	return f.err
}

func TestRegisterStartup(t *testing.T) {
	r := &fakeRegistrar{}
	if err := registerStartup(r, "/opt/carelite/carelite"); err != nil {
		t.Fatalf("registerStartup() error: %v", err)
	}
	if r.target != "/opt/carelite/carelite" {
		t.Errorf("target = %q", r.target)
	}

	boom := errors.New("read-only startup folder")
	err := registerStartup(&fakeRegistrar{err: boom}, "/opt/carelite/carelite")
	if !errors.Is(err, boom) {
		t.Errorf("registerStartup() error = %v, want wrapped %v", err, boom)
	}
}
