package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/fileutil"
	"scribe/internal/pipeline"
	"scribe/internal/services"
)

// Discover builds one job per immediate subdirectory of inputDir, in
// lexicographic order. Outputs go to outputDir/<subdir>. Loose files in the
// input root and hidden directories are ignored.
func Discover(inputDir, outputDir string, isVideo func(name string) bool, flags pipeline.Flags) ([]*pipeline.Job, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discover", "read input dir", inputDir, err)
	}
	outputAbs, _ := filepath.Abs(outputDir)

	var jobs []*pipeline.Job
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		workDir := filepath.Join(inputDir, name)
		if abs, err := filepath.Abs(workDir); err == nil && abs == outputAbs {
			continue
		}
		job := &pipeline.Job{
			Name:      name,
			WorkDir:   workDir,
			OutputDir: filepath.Join(outputDir, name),
			Flags:     flags,
			Status:    pipeline.StatusPending,
		}
		videos, err := listVideos(workDir, isVideo)
		switch {
		case err != nil:
			job.Err = services.Wrap(services.ErrStructural, "discover", name, "directory unreadable", err)
		case len(videos) == 0:
			job.Err = services.Wrap(services.ErrStructural, "discover", name, "no video file", nil)
		case len(videos) > 1:
			job.Err = services.Wrap(services.ErrStructural, "discover", name,
				fmt.Sprintf("%d video files (%s)", len(videos), strings.Join(videos, ", ")), nil)
		default:
			job.SourcePath = filepath.Join(workDir, videos[0])
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func listVideos(dir string, isVideo func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var videos []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || fileutil.IsTempPath(name) {
			continue
		}
		if isVideo(name) {
			videos = append(videos, name)
		}
	}
	return videos, nil
}
