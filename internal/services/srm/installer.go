package srm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"srmsync/internal/fileutil"
	"srmsync/internal/logging"
	"srmsync/internal/services"
)

// Installer makes sure the SRM binary is present, downloading it when not.
type Installer struct {
	url      string
	path     string
	attempts uint
	client   *http.Client
	backoff  backoff.BackOff
	logger   *slog.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithHTTPClient overrides the download client.
func WithHTTPClient(client *http.Client) InstallerOption {
	return func(i *Installer) {
		if client != nil {
			i.client = client
		}
	}
}

// WithBackOff overrides the retry schedule between download attempts.
func WithBackOff(b backoff.BackOff) InstallerOption {
	return func(i *Installer) {
		if b != nil {
			i.backoff = b
		}
	}
}

// NewInstaller constructs an installer that places the binary at path.
func NewInstaller(url, path string, attempts int, timeout time.Duration, logger *slog.Logger, opts ...InstallerOption) *Installer {
	if attempts <= 0 {
		attempts = 1
	}
	inst := &Installer{
		url:      url,
		path:     path,
		attempts: uint(attempts),
		client:   &http.Client{Timeout: timeout},
		backoff:  backoff.NewExponentialBackOff(),
		logger:   logging.NewComponentLogger(logger, "srm-installer"),
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// Path returns where the binary lives.
func (i *Installer) Path() string {
	return i.path
}

// Installed reports whether the binary is already present.
func (i *Installer) Installed() bool {
	return fileutil.FileExists(i.path)
}

// Ensure returns once the binary exists. downloaded reports whether this call
// fetched it. Transient HTTP failures are retried; 4xx responses are not.
func (i *Installer) Ensure(ctx context.Context) (downloaded bool, err error) {
	if i.Installed() {
		i.logger.Debug("srm binary present", logging.String("path", i.path))
		return false, nil
	}
	if i.url == "" {
		return false, services.Wrap(services.ErrConfiguration, "ensure_tool", "download srm", "srm.download_url is empty and the binary is missing", nil)
	}

	i.logger.Info("downloading srm binary",
		logging.String(logging.FieldEventType, "srm_download_start"),
		logging.String("url", i.url),
		logging.String("path", i.path),
	)
	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, i.download(ctx)
	},
		backoff.WithBackOff(i.backoff),
		backoff.WithMaxTries(i.attempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logging.WarnWithContext(i.logger, "srm download attempt failed; retrying", "srm_download_retry",
				logging.Int("attempt", attempt),
				logging.Duration("retry_in", wait),
				logging.Error(err),
				logging.String(logging.FieldImpact, "sync waits for the download"),
			)
		}),
	)
	if err != nil {
		return false, services.Wrap(services.ErrExternalTool, "ensure_tool", "download srm", i.url, err)
	}
	i.logger.Info("srm binary installed",
		logging.String(logging.FieldEventType, "srm_download_complete"),
		logging.String("path", i.path),
		logging.Int("attempts", attempt),
	)
	return true, nil
}

func (i *Installer) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", "srmsync")
	resp, err := i.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return backoff.Permanent(err)
		}
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(statusErr)
		}
		return statusErr
	}

	dir := filepath.Dir(i.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return backoff.Permanent(fmt.Errorf("create bin dir: %w", err))
	}
	tmp, err := os.CreateTemp(dir, ".srm-download-*")
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		_ = tmp.Close()
		return backoff.Permanent(fmt.Errorf("chmod download: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close download: %w", err)
	}
	if err := os.Rename(tmpName, i.path); err != nil {
		return backoff.Permanent(fmt.Errorf("install binary: %w", err))
	}
	return nil
}
