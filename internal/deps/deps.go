package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency scribe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Needs describes which optional tools a run will invoke.
type Needs struct {
	Separation bool
	GPU        bool
}

// Tools names the binaries configured for a run.
type Tools struct {
	FFmpeg   string
	FFprobe  string
	Demucs   string
	GPUProbe string
}

// Requirements lists the binaries a run with the given needs depends on.
// Tools not needed by the run are reported as optional.
func Requirements(tools Tools, needs Needs) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: tools.FFmpeg, Description: "Transcodes video and extracts subtitle and audio streams"},
		{Name: "FFprobe", Command: tools.FFprobe, Description: "Inspects containers and streams"},
		{Name: "Demucs", Command: tools.Demucs, Description: "Separates vocals from accompaniment", Optional: !needs.Separation},
	}
	if probe := firstField(tools.GPUProbe); probe != "" {
		reqs = append(reqs, Requirement{
			Name:        "GPU probe",
			Command:     probe,
			Description: "Confirms a GPU is usable for --device gpu",
			Optional:    !needs.GPU,
		})
	}
	return reqs
}

func firstField(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
