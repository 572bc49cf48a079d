// Package artifact classifies fetched install sources.
//
// Classification is total: every artifact maps to exactly one Kind, with
// KindSingleFile as the fallback. Rules are evaluated in order, extension
// rules first and MIME rules only when no extension matched.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind selects the installation strategy for an artifact.
type Kind int

const (
	// KindSingleFile is a lone executable copied into place. It is the
	// zero value so an unclassified artifact is never a package or archive.
	KindSingleFile Kind = iota
	// KindPackage is a Debian package handed to dpkg.
	KindPackage
	// KindTarball is a gzip-compressed tar archive.
	KindTarball
	// KindZip is a zip archive.
	KindZip
)

// Kinds lists every Kind in declaration order.
var Kinds = []Kind{KindSingleFile, KindPackage, KindTarball, KindZip}

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindTarball:
		return "tarball"
	case KindZip:
		return "zip"
	case KindSingleFile:
		return "single-file"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "package", "deb":
		return KindPackage, nil
	case "tarball", "tar.gz", "tgz":
		return KindTarball, nil
	case "zip":
		return KindZip, nil
	case "single-file", "file", "binary":
		return KindSingleFile, nil
	default:
		return KindSingleFile, fmt.Errorf("unknown artifact kind %q (want package, tarball, zip or single-file)", s)
	}
}

// Artifact is a fetched install source. It is immutable once fetched.
type Artifact struct {
	// Path is where the bytes live on the local filesystem.
	Path string
	// Name is the original file name (URL base name or local base name).
	Name string
	// Kind is declared by the user or inferred by a Classifier.
	Kind Kind
}

// NewArtifact returns an artifact for a local path, named after its base name.
func NewArtifact(path string, kind Kind) Artifact {
	return Artifact{Path: path, Name: filepath.Base(path), Kind: kind}
}
