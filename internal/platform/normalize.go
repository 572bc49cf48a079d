package platform

import "strings"

// familyMap maps gopsutil family and platform strings to canonical families.
var familyMap = map[string]string{
	"debian":    FamilyDebian,
	"ubuntu":    FamilyDebian,
	"linuxmint": FamilyDebian,
	"raspbian":  FamilyDebian,
	"rhel":      FamilyRHEL,
	"centos":    FamilyRHEL,
	"rocky":     FamilyRHEL,
	"almalinux": FamilyRHEL,
	"fedora":    FamilyFedora,
	"suse":      FamilySUSE,
	"opensuse":  FamilySUSE,
	"arch":      FamilyArch,
	"manjaro":   FamilyArch,
	"alpine":    FamilyAlpine,
}

// normalizeArch maps GOARCH aliases; unknown values pass through.
func normalizeArch(arch string) string {
	switch arch {
	case "amd64", "x86_64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return arch
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapFamily resolves the canonical family from gopsutil's family string,
// falling back to the distro ID when the family is empty or unrecognized.
func mapFamily(family, platform string) string {
	if canonical, ok := familyMap[normalize(family)]; ok {
		return canonical
	}
	if canonical, ok := familyMap[normalize(platform)]; ok {
		return canonical
	}
	return FamilyUnknown
}
