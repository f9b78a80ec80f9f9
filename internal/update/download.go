package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"carelite/internal/platform"

	"github.com/google/uuid"
)

// DefaultDownloadTimeout bounds a whole binary download.
const DefaultDownloadTimeout = 5 * time.Minute

// ProgressFunc receives the bytes written so far and the declared total
// (-1 when the server sent no Content-Length).
type ProgressFunc func(written, total int64)

// Downloader stages release assets on disk.
type Downloader struct {
	httpClient *http.Client
	progress   ProgressFunc
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadClient sets a custom HTTP client for downloads.
func WithDownloadClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.httpClient = client
	}
}

// WithDownloadTimeout sets the overall download timeout.
func WithDownloadTimeout(timeout time.Duration) DownloaderOption {
	return func(d *Downloader) {
		if timeout > 0 {
			d.httpClient.Timeout = timeout
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) DownloaderOption {
	return func(d *Downloader) {
		d.progress = fn
	}
}

// NewDownloader creates a downloader with the default five minute timeout.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		httpClient: &http.Client{Timeout: DefaultDownloadTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches url into dir and returns the staged path. Bytes go to an
// exclusively held .partial file that is synced and closed before being renamed
// to name; on any failure the partial file is removed, so a staged path is only
// ever returned for a complete file.
func (d *Downloader) Download(ctx context.Context, url, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", ioError("create staging directory", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", networkError("create download request", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", networkError("download "+name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", networkError("download "+name, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}

	partial := filepath.Join(dir, fmt.Sprintf("%s.%s%s", name, uuid.NewString(), PartialSuffix))
	f, err := platform.CreateExclusive(partial)
	if err != nil {
		return "", ioError("create staged file", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(partial)
		}
	}()

	written, err := d.copy(f, resp.Body, resp.ContentLength)
	if err != nil {
		return "", err
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return "", networkError("download "+name, fmt.Errorf("%w: got %d of %d bytes", ErrShortTransfer, written, resp.ContentLength))
	}
	if err := f.Sync(); err != nil {
		return "", ioError("flush staged file", err)
	}
	if err := f.Close(); err != nil {
		return "", ioError("close staged file", err)
	}
	//nolint:gosec // G302: staged binary must be executable
	if err := os.Chmod(partial, 0o755); err != nil {
		return "", ioError("mark staged file executable", err)
	}

	final := uniquePath(dir, name)
	if err := os.Rename(partial, final); err != nil {
		return "", ioError("rename staged file", err)
	}
	committed = true
	return final, nil
}

// copy streams src into dst, separating read failures (network) from write
// failures (disk).
func (d *Downloader) copy(dst io.Writer, src io.Reader, total int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, ioError("write staged file", werr)
			}
			written += int64(n)
			if d.progress != nil {
				d.progress(written, total)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, networkError("read download body", rerr)
		}
	}
}
