package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/textutil"
)

// PrepareResult reports what Prepare did with each loose video.
type PrepareResult struct {
	Copied  []string
	Skipped []string
	Failed  map[string]error
}

// Prepare turns a flat directory of videos into the one-video-per-directory
// layout Discover expects: every loose video in inputDir is copied to
// outputDir/<sanitized stem>/<file>. Existing copies are left alone.
func Prepare(inputDir, outputDir string, isVideo func(name string) bool, logger *slog.Logger) (PrepareResult, error) {
	logger = logging.NewComponentLogger(logger, "prepare")
	result := PrepareResult{Failed: map[string]error{}}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return result, services.Wrap(services.ErrConfiguration, "prepare", "read input dir", inputDir, err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "prepare", "create output dir", outputDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type().IsRegular() && !strings.HasPrefix(name, ".") && isVideo(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		dirName := textutil.SanitizeDirName(stem)
		if dirName == "" {
			result.Failed[name] = fmt.Errorf("no usable directory name for %q", name)
			continue
		}
		dest := filepath.Join(outputDir, dirName, name)
		if _, err := os.Stat(dest); err == nil {
			result.Skipped = append(result.Skipped, name)
			logger.Info("video already prepared", logging.String("video", name), logging.String("dest", dest))
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			result.Failed[name] = err
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			result.Failed[name] = err
			continue
		}
		if err := fileutil.CopyFileVerified(filepath.Join(inputDir, name), dest); err != nil {
			result.Failed[name] = err
			logging.WarnWithContext(logger, "video copy failed", "prepare_failed",
				logging.String("video", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "video will not be part of the batch"),
			)
			continue
		}
		result.Copied = append(result.Copied, name)
		logger.Info("video prepared", logging.String("video", name), logging.String("dest", dest))
	}
	return result, nil
}
