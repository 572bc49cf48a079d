package install

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/zinst/internal/artifact"
)

// installPackage hands the .deb to dpkg. A failed dpkg run gets exactly one
// repair pass; the executable path stays empty because dpkg does not say
// which file is the tool's entry point.
func (i *Installer) installPackage(ctx context.Context, art artifact.Artifact, res *Result) error {
	if i.platform != nil && !i.platform.IsDebianFamily() {
		i.logger.Warn("host is not Debian-based, dpkg may be unavailable",
			"os", i.platform.OS, "family", i.platform.Family)
	}

	if _, err := i.runner.Run(ctx, "dpkg", "-i", art.Path); err != nil {
		i.logger.Warn("dpkg failed, attempting dependency repair", "error", err.Error())
		if _, repairErr := i.runner.Run(ctx, "apt-get", "install", "-f", "-y"); repairErr != nil {
			return fmt.Errorf("repair after dpkg failure: %w", repairErr)
		}
		i.logger.Info("dependency repair succeeded")
	}

	out, err := i.runner.Run(ctx, "dpkg-deb", "-f", art.Path, "Package")
	if err != nil {
		i.logger.Warn("could not read package name", "error", err.Error())
	} else if name := strings.TrimSpace(out.Stdout); name != "" {
		res.PackageName = name
	}

	i.logger.Info("package installed, executable path unknown",
		"package", res.PackageName, "hint", "invoke the tool by its package-registered name")
	return nil
}
