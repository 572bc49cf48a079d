package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// systemdRuntimeDir exists only when systemd booted the host (sd_booted(3)).
const systemdRuntimeDir = "/run/systemd/system"

// RealDetector implements Detector using actual platform detection.
type RealDetector struct {
	// root prefixes filesystem probes; empty means "/".
	root string
}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect performs platform detection. Distro detection failures leave the
// distro fields empty; only context cancellation is an error.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:   runtime.GOOS,
		Arch: normalizeArch(runtime.GOARCH),
	}

	if runtime.GOOS != "linux" {
		return info, nil
	}

	info.Systemd = d.systemdBooted()

	platform, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}

	platform = normalize(platform)
	if platform != "" {
		info.Distro = platform
		info.Family = mapFamily(family, platform)
		info.Version = normalize(version)
	}

	return info, nil
}

func (d *RealDetector) systemdBooted() bool {
	fi, err := os.Stat(filepath.Join(d.root, systemdRuntimeDir))
	return err == nil && fi.IsDir()
}
