package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultAPIBase         = "https://api.github.com"
	DefaultMetadataTimeout = 30 * time.Second
	UserAgent              = "CareLite Update Checker/1.0"
	DefaultNotes           = "No release notes available."

	maxReleaseDocument = 4 << 20
)

// ReleaseAsset is a downloadable file attached to a release, as published.
type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// ReleaseInfo is the release feed document.
type ReleaseInfo struct {
	TagName     string         `json:"tag_name"`
	Name        string         `json:"name"`
	Body        string         `json:"body"`
	HTMLURL     string         `json:"html_url"`
	PublishedAt time.Time      `json:"published_at"`
	Assets      []ReleaseAsset `json:"assets"`
}

// Asset is a candidate binary for the update.
type Asset struct {
	Name string
	URL  string
	Size int64
}

// Release is the immutable metadata of the latest published release.
type Release struct {
	Tag         string
	Version     Version
	Notes       string
	Assets      []Asset
	HTMLURL     string
	PublishedAt time.Time
}

// Decision is the outcome of comparing the host version against a release.
type Decision int

const (
	// DecisionUpToDate means the release is not newer than the host.
	DecisionUpToDate Decision = iota
	// DecisionUpdateAvailable means the release is strictly newer.
	DecisionUpdateAvailable
)

func (d Decision) String() string {
	if d == DecisionUpdateAvailable {
		return "update-available"
	}
	return "up-to-date"
}

// Resolver fetches release metadata from a GitHub-compatible feed.
type Resolver struct {
	owner      string
	repo       string
	apiBase    string
	httpClient *http.Client
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient sets a custom HTTP client for the resolver.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		if timeout > 0 {
			r.httpClient.Timeout = timeout
		}
	}
}

// WithAPIBase points the resolver at a different API root.
func WithAPIBase(base string) ResolverOption {
	return func(r *Resolver) {
		if strings.TrimSpace(base) != "" {
			r.apiBase = strings.TrimRight(base, "/")
		}
	}
}

// NewResolver creates a resolver for the given repository.
func NewResolver(owner, repo string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		owner:   owner,
		repo:    repo,
		apiBase: DefaultAPIBase,
		httpClient: &http.Client{
			Timeout: DefaultMetadataTimeout,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Endpoint returns the URL of the latest-release document.
func (r *Resolver) Endpoint() string {
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.apiBase, r.owner, r.repo)
}

// FetchLatest performs exactly one request for the latest release. Transport
// failures, timeouts and non-200 answers are network errors; a document that
// fails validation or carries an unusable tag is a parse error.
func (r *Resolver) FetchLatest(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Endpoint(), nil)
	if err != nil {
		return nil, networkError("create request", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, networkError("fetch latest release", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusForbidden {
		return nil, networkError("fetch latest release", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, networkError("fetch latest release", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReleaseDocument))
	if err != nil {
		return nil, networkError("read release document", err)
	}
	return decodeRelease(body)
}

func decodeRelease(body []byte) (*Release, error) {
	if err := validateRelease(body); err != nil {
		return nil, err
	}

	var info ReleaseInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, parseError("decode release document", err)
	}

	tag := strings.TrimSpace(info.TagName)
	if tag == "" {
		return nil, parseError("release tag", ErrMissingTag)
	}
	version, err := ParseRemoteVersion(tag)
	if err != nil {
		return nil, parseError(fmt.Sprintf("release tag %q", tag), err)
	}

	notes := info.Body
	if strings.TrimSpace(notes) == "" {
		notes = DefaultNotes
	}

	assets := make([]Asset, 0, len(info.Assets))
	for _, a := range info.Assets {
		assets = append(assets, Asset{Name: a.Name, URL: a.BrowserDownloadURL, Size: a.Size})
	}

	return &Release{
		Tag:         strings.TrimPrefix(strings.TrimPrefix(tag, "v"), "V"),
		Version:     version,
		Notes:       notes,
		Assets:      assets,
		HTMLURL:     info.HTMLURL,
		PublishedAt: info.PublishedAt,
	}, nil
}

// Decide compares the host version against the release. Only a strictly newer
// release yields DecisionUpdateAvailable.
func Decide(current Version, release *Release) (Decision, Version, error) {
	if release == nil || release.Version.IsZero() {
		return DecisionUpToDate, Version{}, parseError("release version", ErrMissingTag)
	}
	if release.Version.Compare(current) == Greater {
		return DecisionUpdateAvailable, release.Version, nil
	}
	return DecisionUpToDate, release.Version, nil
}
