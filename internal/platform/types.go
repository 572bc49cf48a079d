// Package platform detects the host zinst runs on: OS, architecture, Linux
// distribution family and whether systemd is the service manager.
//
// The package-install strategy only works on Debian-family hosts and the
// service step only on systemd hosts, so both facts are surfaced here and
// also exposed to the Lua config as a read-only `platform` table. Detection
// of distro details goes through gopsutil and falls back gracefully.
package platform

import "context"

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS      string // "linux", "darwin", ...
	Arch    string // normalized: "amd64", "arm64", or GOARCH as-is
	Distro  string // distro ID (Linux only, e.g. "ubuntu")
	Family  string // canonical family (e.g. "debian")
	Version string // distro version (e.g. "24.04")
	Systemd bool   // systemd is PID 1
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsDebianFamily returns true when dpkg-based installs are expected to work.
func (i *Info) IsDebianFamily() bool {
	return i.IsLinux() && i.Family == FamilyDebian
}

// HasSystemd reports whether unit files can be installed and started.
func (i *Info) HasSystemd() bool {
	return i.IsLinux() && i.Systemd
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. Tests use it in place of host detection.
type StaticDetector struct {
	Info *Info
	Err  error
}

// Detect returns the configured info and error.
func (s *StaticDetector) Detect(ctx context.Context) (*Info, error) {
	return s.Info, s.Err
}
