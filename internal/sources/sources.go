package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/proxy"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"shrike/internal/blocklist"
	"shrike/internal/config"
)

const (
	downloadDir      = "data/blocklists"
	maxDownloadBytes = 64 << 20 // safety cap per source
	downloadTimeout  = 60 * time.Second
	maxConcurrent    = 4
)

var refreshOnce singleflight.Group

// RefreshOutcome summarizes one download round.
type RefreshOutcome struct {
	Sources    int
	Downloaded int
	Submitted  string
}

// Refresh downloads every configured blocklist source into the data
// directory and submits the first successfully downloaded one to the
// load job. Concurrent callers share a single round.
func Refresh(ctx context.Context, reason string) (*RefreshOutcome, error) {
	result, err, _ := refreshOnce.Do("refresh", func() (interface{}, error) {
		return doRefresh(ctx, reason)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	outcome, _ := result.(*RefreshOutcome)
	return outcome, nil
}

func doRefresh(ctx context.Context, reason string) (*RefreshOutcome, error) {
	cfg := config.GetConfig()
	urls := append([]string(nil), cfg.Filter.Sources...)
	if len(urls) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	client, err := newHTTPClient(cfg.Filter.ProxyURL)
	if err != nil {
		return nil, err
	}

	downloaded := make([]string, len(urls))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrent)
	for i, src := range urls {
		group.Go(func() error {
			localPath, fetchErr := downloadSource(groupCtx, client, src, downloadDir)
			if fetchErr != nil {
				if errors.Is(fetchErr, context.Canceled) {
					return fetchErr
				}
				log.Warn("Blocklist download failed", "source", src, "reason", reason, "error", fetchErr)
				return nil
			}
			downloaded[i] = localPath
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	outcome := &RefreshOutcome{Sources: len(urls)}
	for _, localPath := range downloaded {
		if localPath == "" {
			continue
		}
		outcome.Downloaded++
		// Sources are ordered by preference; the first one that
		// downloaded becomes the active filter.
		if outcome.Submitted == "" {
			outcome.Submitted = localPath
		}
	}

	if outcome.Submitted != "" {
		blocklist.Reload(outcome.Submitted)
	}

	return outcome, nil
}

// downloadSource fetches one blocklist URL into dir, writing through a
// temp file so a failed download never clobbers the previous copy.
func downloadSource(ctx context.Context, client *http.Client, source, dir string) (string, error) {
	name, err := localFileName(source)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadBytes)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("replace blocklist file: %w", err)
	}

	return target, nil
}

// localFileName derives the on-disk name from the URL path, keeping the
// format-bearing extension.
func localFileName(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid source URL: %w", err)
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("source URL has no usable file name: %s", source)
	}
	return name, nil
}

// newHTTPClient builds the download client, dialing through a SOCKS5
// proxy when one is configured.
func newHTTPClient(proxyURL string) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}

		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		socksDialer, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: 30 * time.Second})
		if err != nil {
			return nil, err
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return socksDialer.Dial(network, addr)
		}
	}

	return &http.Client{Timeout: downloadTimeout, Transport: transport}, nil
}
