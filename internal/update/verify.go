package update

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"carelite/internal/diag"
	appErrors "carelite/internal/errors"

	"github.com/jedisct1/go-minisign"
)

const maxSidecarSize = 1 << 20

var errNotPublished = errors.New("not published")

// Verifier checks a staged file before it is handed to a replacement strategy.
type Verifier interface {
	Verify(ctx context.Context, release *Release, asset Asset, stagedPath string) error
}

// ReleaseVerifier checks staged files against sidecar assets of the same
// release: a SHA-256 checksums file and, when a public key is configured, a
// minisign signature named <asset>.minisig.
type ReleaseVerifier struct {
	Matcher       AssetMatcher
	ChecksumAsset string
	PublicKey     string
	HTTPClient    *http.Client
	Log           *diag.Log
}

// Verify implements Verifier. A release without a checksums file is accepted
// (and logged); a configured public key makes the signature mandatory.
func (v *ReleaseVerifier) Verify(ctx context.Context, release *Release, asset Asset, stagedPath string) error {
	if v.ChecksumAsset != "" {
		if err := v.verifyChecksum(ctx, release, asset, stagedPath); err != nil {
			return err
		}
	}
	if strings.TrimSpace(v.PublicKey) != "" {
		if err := v.verifySignature(ctx, release, asset, stagedPath); err != nil {
			return err
		}
	}
	return nil
}

func (v *ReleaseVerifier) verifyChecksum(ctx context.Context, release *Release, asset Asset, stagedPath string) error {
	sidecar, err := v.Matcher.Match(release, v.ChecksumAsset)
	if appErrors.IsCode(err, appErrors.CodeAssetNotFound) {
		v.Log.Printf("release %s publishes no %s; skipping checksum verification", release.Tag, v.ChecksumAsset)
		return nil
	}
	if err != nil {
		return err
	}

	body, err := v.fetch(ctx, sidecar.URL)
	if errors.Is(err, errNotPublished) {
		v.Log.Printf("%s not found at %s; skipping checksum verification", v.ChecksumAsset, sidecar.URL)
		return nil
	}
	if err != nil {
		return err
	}

	sums, err := ParseChecksumFile(strings.NewReader(string(body)))
	if err != nil {
		return verificationError("parse "+v.ChecksumAsset, err)
	}
	expected, ok := lookupChecksum(sums, asset.Name)
	if !ok {
		return verificationError(fmt.Sprintf("%s has no entry for %s", v.ChecksumAsset, asset.Name), ErrChecksumMismatch)
	}
	if err := VerifyChecksum(stagedPath, expected); err != nil {
		return err
	}
	v.Log.Printf("checksum verified for %s", asset.Name)
	return nil
}

func (v *ReleaseVerifier) verifySignature(ctx context.Context, release *Release, asset Asset, stagedPath string) error {
	pubKey, err := minisign.NewPublicKey(strings.TrimSpace(v.PublicKey))
	if err != nil {
		return appErrors.New(appErrors.CodeConfigurationError, "decode minisign public key", err)
	}

	sigAsset, err := v.Matcher.Match(release, asset.Name+".minisig")
	if err != nil {
		return verificationError("signature required", err)
	}
	body, err := v.fetch(ctx, sigAsset.URL)
	if err != nil {
		return verificationError("fetch signature", err)
	}
	sig, err := minisign.DecodeSignature(strings.TrimSpace(string(body)))
	if err != nil {
		return verificationError("decode signature", err)
	}

	//nolint:gosec // G304: staged file inside the private staging directory
	content, err := os.ReadFile(stagedPath)
	if err != nil {
		return ioError("read staged file", err)
	}
	valid, err := pubKey.Verify(content, sig)
	if err != nil {
		return verificationError("minisign", err)
	}
	if !valid {
		return verificationError("minisign", ErrSignatureInvalid)
	}
	v.Log.Printf("signature verified for %s", asset.Name)
	return nil
}

func (v *ReleaseVerifier) fetch(ctx context.Context, url string) ([]byte, error) {
	client := v.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultMetadataTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, networkError("create request", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, networkError("fetch "+url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotPublished
	}
	if resp.StatusCode != http.StatusOK {
		return nil, networkError("fetch "+url, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSidecarSize))
	if err != nil {
		return nil, networkError("read "+url, err)
	}
	return body, nil
}

func lookupChecksum(sums map[string]string, name string) (string, bool) {
	if sum, ok := sums[name]; ok {
		return sum, true
	}
	for file, sum := range sums {
		if strings.EqualFold(file, name) {
			return sum, true
		}
	}
	return "", false
}

// VerifyChecksum verifies a file against an expected SHA256 checksum.
func VerifyChecksum(path, expected string) error {
	//nolint:gosec // G304: Path comes from caller; this is intentional for checksum verification
	f, err := os.Open(path)
	if err != nil {
		return ioError("open staged file", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ioError("hash staged file", err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return verificationError(fmt.Sprintf("expected %s, got %s", expected, actual), ErrChecksumMismatch)
	}
	return nil
}

// ParseChecksumFile parses a checksums.txt file and returns a map of filename to checksum.
// Format: "sha256hash  filename" (two spaces between hash and filename)
func ParseChecksumFile(r io.Reader) (map[string]string, error) {
	checksums := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Split on double space (standard format) or single space
		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			parts = strings.SplitN(line, " ", 2)
		}
		if len(parts) != 2 {
			continue
		}

		hash := strings.TrimSpace(parts[0])
		// Binary-mode entries prefix the name with '*'.
		filename := strings.TrimPrefix(strings.TrimSpace(parts[1]), "*")
		filename = filepath.Base(filename)

		if hash != "" && filename != "" {
			checksums[filename] = hash
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checksums: %w", err)
	}

	return checksums, nil
}
