package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/credentials"
	"scribe/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not set"}
	}
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
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckOutputDirectory checks the output root, or its nearest existing parent
// when the root will be created by the run.
func CheckOutputDirectory(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not set"}
	}
	target := nearestExisting(path)
	result := CheckDirectoryAccess(name, target)
	if result.Passed && target != path {
		result.Detail = fmt.Sprintf("%s (will be created under %s)", path, target)
	}
	return result
}

// CheckDiskSpace verifies that the filesystem holding path has at least
// minFreeBytes available.
func CheckDiskSpace(ctx context.Context, name, path string, minFreeBytes uint64) Result {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s free of %s", formatBytes(usage.Free), formatBytes(usage.Total))
	if usage.Free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, formatBytes(minFreeBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckCredentials verifies the credential file is present and complete.
func CheckCredentials(secretsDir, fileName string) Result {
	const name = "Credentials"
	creds, err := credentials.Load(secretsDir, fileName)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (deployment %s)", creds.Source, creds.Deployment)}
}

// CheckSTTEndpoint verifies the speech-to-text endpoint is reachable and the key is accepted.
func CheckSTTEndpoint(ctx context.Context, creds credentials.Credentials, apiVersion string) Result {
	const name = "Speech-to-text API"

	base := strings.TrimRight(strings.TrimSpace(creds.Endpoint), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing endpoint"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	target := fmt.Sprintf("%s/openai/deployments/%s?api-version=%s", base, url.PathEscape(creds.Deployment), url.QueryEscape(apiVersion))
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	req.Header.Set("api-key", creds.APIKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeHTTPError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		// Some API versions answer 404 for deployment metadata with a valid key.
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%d)", resp.StatusCode)}
	}
}

// CheckSystemDeps evaluates the external binaries the run needs.
func CheckSystemDeps(cfg *config.Config, needs deps.Needs) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(deps.Tools{
		FFmpeg:   cfg.Media.FFmpegBinary,
		FFprobe:  cfg.Media.FFprobeBinary,
		Demucs:   cfg.Separation.DemucsBinary,
		GPUProbe: cfg.Separation.GPUProbeCommand,
	}, needs))
}

func summarizeHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (API unreachable)"
	}
	return err.Error()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func nearestExisting(path string) string {
	for path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
	return "."
}
