package update

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carelite/internal/diag"
	appErrors "carelite/internal/errors"
)

func TestVerifyChecksum(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test")
	content := []byte("test content")
	if err := os.WriteFile(testFile, content, 0o644); err != nil {
		t.Fatalf("create test file: %v", err)
	}

	h := sha256.Sum256(content)
	expected := hex.EncodeToString(h[:])

	if err := VerifyChecksum(testFile, expected); err != nil {
		t.Errorf("VerifyChecksum() with correct checksum: %v", err)
	}
	if err := VerifyChecksum(testFile, strings.ToUpper(expected)); err != nil {
		t.Errorf("VerifyChecksum() should ignore case: %v", err)
	}

	err := VerifyChecksum(testFile, "wrong")
	if !appErrors.IsCode(err, appErrors.CodeVerification) || !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("VerifyChecksum() wrong checksum error = %v", err)
	}

	if err := VerifyChecksum(filepath.Join(tmpDir, "nonexistent"), expected); !appErrors.IsCode(err, appErrors.CodeIO) {
		t.Errorf("VerifyChecksum() missing file error = %v, want io_error", err)
	}
}

func TestParseChecksumFile(t *testing.T) {
	input := `abc123def456  carelite_darwin_arm64
789xyz  carelite_linux_amd64
# comment line
invalid

deadbeef  ./dist/carelite.exe
cafe *carelite_windows_arm64.exe
`

	checksums, err := ParseChecksumFile(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseChecksumFile() error: %v", err)
	}

	tests := []struct {
		filename string
		checksum string
	}{
		{"carelite_darwin_arm64", "abc123def456"},
		{"carelite_linux_amd64", "789xyz"},
		{"carelite.exe", "deadbeef"},
		{"carelite_windows_arm64.exe", "cafe"},
	}
	for _, tt := range tests {
		got, ok := checksums[tt.filename]
		if !ok {
			t.Errorf("missing checksum for %s", tt.filename)
			continue
		}
		if got != tt.checksum {
			t.Errorf("checksum[%s] = %s, want %s", tt.filename, got, tt.checksum)
		}
	}
	if len(checksums) != len(tests) {
		t.Errorf("parsed %d entries, want %d", len(checksums), len(tests))
	}
}

func TestParseChecksumFileEmpty(t *testing.T) {
	checksums, err := ParseChecksumFile(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseChecksumFile() error: %v", err)
	}
	if len(checksums) != 0 {
		t.Errorf("expected empty map, got %d entries", len(checksums))
	}
}

// sidecarServer serves fixed bodies by path; unknown paths answer 404.
func sidecarServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func stageFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "update_2.1.0.exe")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func sha(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

func TestReleaseVerifierChecksum(t *testing.T) {
	content := []byte("new binary")
	tests := []struct {
		name    string
		sums    string
		publish bool
		code    appErrors.Code
	}{
		{"match", sha(content) + "  carelite.exe\n", true, ""},
		{"mismatch", sha([]byte("other")) + "  carelite.exe\n", true, appErrors.CodeVerification},
		{"no entry", sha(content) + "  carelite_linux_amd64\n", true, appErrors.CodeVerification},
		{"listed but not published", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{}
			if tt.publish {
				files["/checksums.txt"] = tt.sums
			}
			server := sidecarServer(t, files)
			release := &Release{Tag: "2.1.0", Assets: []Asset{
				{Name: "carelite.exe", URL: server.URL + "/carelite.exe"},
				{Name: "checksums.txt", URL: server.URL + "/checksums.txt"},
			}}
			v := &ReleaseVerifier{Matcher: NameMatcher{}, ChecksumAsset: "checksums.txt", Log: diag.Discard()}

			err := v.Verify(context.Background(), release, release.Assets[0], stageFile(t, content))
			if tt.code == "" {
				if err != nil {
					t.Fatalf("Verify() error: %v", err)
				}
				return
			}
			if !appErrors.IsCode(err, tt.code) {
				t.Fatalf("Verify() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestReleaseVerifierNoChecksumAsset(t *testing.T) {
	release := &Release{Tag: "2.1.0", Assets: []Asset{{Name: "carelite.exe", URL: "http://unused"}}}
	v := &ReleaseVerifier{Matcher: NameMatcher{}, ChecksumAsset: "checksums.txt", Log: diag.Discard()}
	if err := v.Verify(context.Background(), release, release.Assets[0], stageFile(t, []byte("x"))); err != nil {
		t.Errorf("Verify() without checksums asset: %v", err)
	}
}

// minisignFixture signs content the way the minisign tool does (legacy
// non-prehashed "Ed" signatures) and returns the public key line and the
// .minisig file body.
func minisignFixture(t *testing.T, content []byte) (string, string) {
	t.Helper()
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	keyID := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	pk := append(append([]byte("Ed"), keyID...), pub...)
	sig := ed25519.Sign(priv, content)
	sigLine := append(append([]byte("Ed"), keyID...), sig...)

	trusted := "timestamp:1706693400\tfile:carelite.exe"
	global := ed25519.Sign(priv, append(append([]byte{}, sig...), []byte(trusted)...))

	body := strings.Join([]string{
		"untrusted comment: signature from test key",
		base64.StdEncoding.EncodeToString(sigLine),
		"trusted comment: " + trusted,
		base64.StdEncoding.EncodeToString(global),
	}, "\n") + "\n"
	return base64.StdEncoding.EncodeToString(pk), body
}

func TestReleaseVerifierSignature(t *testing.T) {
	content := []byte("signed binary")
	pubKey, sigBody := minisignFixture(t, content)

	tests := []struct {
		name    string
		staged  []byte
		publish bool
		code    appErrors.Code
	}{
		{"valid", content, true, ""},
		{"tampered", []byte("tampered binary"), true, appErrors.CodeVerification},
		{"missing signature", content, false, appErrors.CodeVerification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{}
			if tt.publish {
				files["/carelite.exe.minisig"] = sigBody
			}
			server := sidecarServer(t, files)
			assets := []Asset{{Name: "carelite.exe", URL: server.URL + "/carelite.exe"}}
			if tt.publish {
				assets = append(assets, Asset{Name: "carelite.exe.minisig", URL: server.URL + "/carelite.exe.minisig"})
			}
			release := &Release{Tag: "2.1.0", Assets: assets}
			v := &ReleaseVerifier{Matcher: NameMatcher{}, PublicKey: pubKey, Log: diag.Discard()}

			err := v.Verify(context.Background(), release, assets[0], stageFile(t, tt.staged))
			if tt.code == "" {
				if err != nil {
					t.Fatalf("Verify() error: %v", err)
				}
				return
			}
			if !appErrors.IsCode(err, tt.code) {
				t.Fatalf("Verify() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestReleaseVerifierBadKey(t *testing.T) {
	release := &Release{Tag: "2.1.0", Assets: []Asset{{Name: "carelite.exe", URL: "http://unused"}}}
	v := &ReleaseVerifier{Matcher: NameMatcher{}, PublicKey: "not-a-key", Log: diag.Discard()}
	err := v.Verify(context.Background(), release, release.Assets[0], stageFile(t, []byte("x")))
	if !appErrors.IsCode(err, appErrors.CodeConfigurationError) {
		t.Errorf("Verify() error = %v, want configuration_error", err)
	}
}
