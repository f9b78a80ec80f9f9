package update

import (
	"fmt"
	"net/url"
	"strings"

	appErrors "carelite/internal/errors"
)

// Match policies accepted by NewMatcher.
const (
	MatchByName      = "name"
	MatchByLatestURL = "latest-url"

	DefaultDownloadBase = "https://github.com"
)

// AssetMatcher selects the release asset with the given file name.
type AssetMatcher interface {
	Match(release *Release, name string) (Asset, error)
}

// NameMatcher picks the asset whose name equals the target, ignoring case.
type NameMatcher struct{}

// Match implements AssetMatcher.
func (NameMatcher) Match(release *Release, name string) (Asset, error) {
	if release == nil {
		return Asset{}, assetNotFound("no release to search")
	}
	for _, a := range release.Assets {
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return Asset{}, assetNotFound(fmt.Sprintf("release %s has no asset named %q", release.Tag, name))
}

// LatestURLMatcher builds the "latest release direct download" URL without
// consulting the asset list.
type LatestURLMatcher struct {
	DownloadBase string
	Owner        string
	Repo         string
}

// Match implements AssetMatcher.
func (m LatestURLMatcher) Match(_ *Release, name string) (Asset, error) {
	if strings.TrimSpace(name) == "" {
		return Asset{}, assetNotFound("no asset name configured")
	}
	base := strings.TrimRight(m.DownloadBase, "/")
	if base == "" {
		base = DefaultDownloadBase
	}
	return Asset{
		Name: name,
		URL: fmt.Sprintf("%s/%s/%s/releases/latest/download/%s",
			base, url.PathEscape(m.Owner), url.PathEscape(m.Repo), url.PathEscape(name)),
	}, nil
}

// NewMatcher returns the matcher for a configured policy.
func NewMatcher(policy, downloadBase, owner, repo string) (AssetMatcher, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", MatchByName:
		return NameMatcher{}, nil
	case MatchByLatestURL:
		return LatestURLMatcher{DownloadBase: downloadBase, Owner: owner, Repo: repo}, nil
	default:
		return nil, appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("unknown asset match policy %q", policy), nil)
	}
}
