package update

import (
	"testing"

	appErrors "carelite/internal/errors"
)

func testRelease() *Release {
	return &Release{
		Tag: "2.1.0",
		Assets: []Asset{
			{Name: "carelite_linux_amd64", URL: "https://example.test/linux"},
			{Name: "CareLite.exe", URL: "https://example.test/exe"},
			{Name: "checksums.txt", URL: "https://example.test/sums"},
		},
	}
}

func TestNameMatcher(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"carelite_linux_amd64", "https://example.test/linux", false},
		{"carelite.exe", "https://example.test/exe", false},
		{"CARELITE.EXE", "https://example.test/exe", false},
		{"carelite_darwin_arm64", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := NameMatcher{}.Match(testRelease(), tt.name)
			if tt.wantErr {
				if !appErrors.IsCode(err, appErrors.CodeAssetNotFound) {
					t.Fatalf("Match(%q) error = %v, want asset_not_found", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Match(%q) error: %v", tt.name, err)
			}
			if asset.URL != tt.want {
				t.Errorf("URL = %q, want %q", asset.URL, tt.want)
			}
		})
	}
}

func TestNameMatcherNilRelease(t *testing.T) {
	if _, err := (NameMatcher{}).Match(nil, "carelite.exe"); !appErrors.IsCode(err, appErrors.CodeAssetNotFound) {
		t.Errorf("Match(nil) error = %v, want asset_not_found", err)
	}
}

func TestLatestURLMatcher(t *testing.T) {
	m := LatestURLMatcher{Owner: "VRHighLow", Repo: "SystemCareLite"}
	asset, err := m.Match(nil, "carelite.exe")
	if err != nil {
		t.Fatalf("Match() error: %v", err)
	}
	want := "https://github.com/VRHighLow/SystemCareLite/releases/latest/download/carelite.exe"
	if asset.URL != want {
		t.Errorf("URL = %q, want %q", asset.URL, want)
	}
	if asset.Name != "carelite.exe" {
		t.Errorf("Name = %q", asset.Name)
	}

	m.DownloadBase = "http://127.0.0.1:8080/"
	asset, _ = m.Match(testRelease(), "a b.exe")
	if asset.URL != "http://127.0.0.1:8080/VRHighLow/SystemCareLite/releases/latest/download/a%20b.exe" {
		t.Errorf("URL = %q", asset.URL)
	}

	if _, err := m.Match(testRelease(), " "); !appErrors.IsCode(err, appErrors.CodeAssetNotFound) {
		t.Errorf("blank name error = %v, want asset_not_found", err)
	}
}

func TestNewMatcher(t *testing.T) {
	if m, err := NewMatcher("", "", "o", "r"); err != nil {
		t.Fatalf("NewMatcher(\"\") error: %v", err)
	} else if _, ok := m.(NameMatcher); !ok {
		t.Errorf("default matcher = %T, want NameMatcher", m)
	}
	if m, err := NewMatcher("Latest-URL", "http://dl", "o", "r"); err != nil {
		t.Fatalf("NewMatcher(latest-url) error: %v", err)
	} else if lm, ok := m.(LatestURLMatcher); !ok || lm.Owner != "o" || lm.DownloadBase != "http://dl" {
		t.Errorf("matcher = %#v", m)
	}
	if _, err := NewMatcher("fuzzy", "", "o", "r"); !appErrors.IsCode(err, appErrors.CodeConfigurationError) {
		t.Errorf("unknown policy error = %v, want configuration_error", err)
	}
}
