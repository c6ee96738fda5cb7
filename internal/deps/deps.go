// Package deps reports the availability of the external tools voicerack
// shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"voicerack/internal/config"
)

// Requirement defines an external dependency voicerack relies on.
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
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements derives the tool list from configuration. flatpak-spawn is
// only needed inside a sandbox, so it stays optional.
func Requirements(cfg *config.Config) []Requirement {
	binary := "flatpak"
	if cfg != nil {
		binary = cfg.FlatpakBinary()
	}
	return []Requirement{
		{
			Name:        "Flatpak",
			Command:     binary,
			Description: "Bundle manager that installs voices and providers",
		},
		{
			Name:        "Flatpak spawn",
			Command:     "flatpak-spawn",
			Description: "Host command bridge used when running sandboxed",
			Optional:    true,
		},
	}
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
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
