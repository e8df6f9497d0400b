package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mikanarr/internal/alist"
	"mikanarr/internal/config"
	"mikanarr/internal/feed"
	"mikanarr/internal/services"
	"mikanarr/internal/services/llm"
	"mikanarr/internal/tmdb"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeTimeout(err, "LLM API")}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckAlist verifies the Alist server answers and the token can read the
// download root.
func CheckAlist(ctx context.Context, cfg *config.Config) Result {
	const name = "Alist"

	downloader, err := alist.ParseDownloader(cfg.Alist.Downloader)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	client, err := alist.New(cfg.Alist.BaseURL, cfg.Alist.Token, downloader, alist.WithTimeout(5*time.Second))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	version, err := client.Version(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%s)", summarizeTimeout(err, "Alist"))}
	}
	exists, err := client.FolderExists(checkCtx, cfg.Alist.DownloadPath)
	if err != nil {
		if errors.Is(err, services.ErrApplication) {
			return Result{Name: name, Detail: fmt.Sprintf("v%s, token rejected (%v)", version, err)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("v%s, list %s failed (%v)", version, cfg.Alist.DownloadPath, err)}
	}
	detail := fmt.Sprintf("v%s, %s ready", version, cfg.Alist.DownloadPath)
	if !exists {
		detail = fmt.Sprintf("v%s, %s will be created", version, cfg.Alist.DownloadPath)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckTMDB verifies the TMDB key with a small search.
func CheckTMDB(ctx context.Context, cfg config.TMDB) Result {
	const name = "TMDB"

	client, err := tmdb.New(cfg.APIKey, cfg.BaseURL, cfg.Language)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := client.SearchTV(checkCtx, "Frieren"); err != nil && !errors.Is(err, services.ErrNotFound) {
		return Result{Name: name, Detail: summarizeTimeout(err, "TMDB")}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckFeed fetches one feed and reports how many entries it carries.
func CheckFeed(ctx context.Context, url string) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	source, err := feed.NewSource(url)
	if err != nil {
		return Result{Name: url, Detail: err.Error()}
	}
	entries, err := source.Entries(checkCtx)
	if err != nil {
		return Result{Name: source.Name(), Detail: summarizeTimeout(err, "feed")}
	}
	return Result{Name: source.Name(), Passed: true, Detail: fmt.Sprintf("%d entries", len(entries))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeTimeout turns timeouts into a readable detail and passes other
// errors through.
func summarizeTimeout(err error, service string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timed out (%s unresponsive)", service)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("timed out (%s unreachable)", service)
	}
	return strings.TrimSpace(err.Error())
}
