// Package version provides build-time metadata for proxygate.
// The variables are populated via -ldflags during the Docker build.
package version

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// Version is the semantic version or git commit hash (e.g., "v1.0.0" or "a1b2c3d").
	// Set via: -ldflags "-X proxygate/internal/version.Version=..."
	Version = "unknown"

	// BuildDate is the ISO 8601 UTC timestamp when the binary was built.
	BuildDate = "unknown"

	// GitCommit is the git commit SHA of the source code.
	GitCommit = "unknown"
)

// processStart is captured at package init and backs Uptime.
var processStart = time.Now()

// Info holds all build metadata and runtime information.
type Info struct {
	Version    string    `json:"version"`
	GitCommit  string    `json:"git_commit"`
	BuildDate  string    `json:"build_date"`
	InstanceID string    `json:"instance_id"`
	Hostname   string    `json:"hostname"`
	StartedAt  time.Time `json:"started_at"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns build metadata and runtime information.
// Instance ID and hostname are computed once on first call and cached.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.New().String(),
			Hostname:   getHostname(),
			StartedAt:  processStart,
		}
	})
	return info
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// Uptime is the time since the process started.
func Uptime() time.Duration {
	return time.Since(processStart)
}

// UserAgent is sent on outbound proxy checks.
func (i Info) UserAgent() string {
	return "proxygate/" + i.Version
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("proxygate version %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}
