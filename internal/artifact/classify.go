package artifact

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
)

// RuleSource says what a Rule inspects.
type RuleSource int

const (
	// SourceExtension rules look at the lower-cased file name.
	SourceExtension RuleSource = iota
	// SourceMIME rules look at the sniffed content type.
	SourceMIME
)

// Rule maps a predicate to a Kind.
type Rule struct {
	Name   string
	Source RuleSource
	Match  func(value string) bool
	Kind   Kind
}

func hasSuffix(suffixes ...string) func(string) bool {
	return func(name string) bool {
		for _, s := range suffixes {
			if strings.HasSuffix(name, s) {
				return true
			}
		}
		return false
	}
}

func isMIME(types ...string) func(string) bool {
	return func(mime string) bool {
		for _, t := range types {
			if mime == t {
				return true
			}
		}
		return false
	}
}

// DefaultRules is the ordered classification table. First match wins.
var DefaultRules = []Rule{
	{Name: "ext:.deb", Source: SourceExtension, Match: hasSuffix(".deb"), Kind: KindPackage},
	{Name: "ext:.tar.gz", Source: SourceExtension, Match: hasSuffix(".tar.gz", ".tgz"), Kind: KindTarball},
	{Name: "ext:.zip", Source: SourceExtension, Match: hasSuffix(".zip"), Kind: KindZip},
	{Name: "mime:debian-package", Source: SourceMIME, Match: isMIME("application/x-debian-package", "application/vnd.debian.binary-package"), Kind: KindPackage},
	{Name: "mime:gzip", Source: SourceMIME, Match: isMIME("application/gzip", "application/x-gzip"), Kind: KindTarball},
	{Name: "mime:zip", Source: SourceMIME, Match: isMIME("application/zip"), Kind: KindZip},
}

// FallbackRule is reported when no rule matched.
const FallbackRule = "fallback"

// Classification explains how a Kind was chosen.
type Classification struct {
	Kind Kind
	Rule string // name of the matching rule, or FallbackRule
	MIME string // sniffed type; empty when sniffing was skipped or failed
}

// Classifier chooses a Kind for an artifact.
type Classifier struct {
	rules   []Rule
	sniffer Sniffer
	logger  lifecycle.Logger
}

// NewClassifier creates a classifier over DefaultRules. A nil sniffer
// disables MIME rules.
func NewClassifier(sniffer Sniffer, logger lifecycle.Logger) *Classifier {
	return &Classifier{
		rules:   DefaultRules,
		sniffer: sniffer,
		logger:  lifecycle.OrNop(logger),
	}
}

// withRules returns a copy of c using rules instead of DefaultRules.
func (c *Classifier) withRules(rules []Rule) *Classifier {
	clone := *c
	clone.rules = rules
	return &clone
}

// Classify returns the Kind for the artifact at path. It never fails.
func (c *Classifier) Classify(ctx context.Context, path string) Kind {
	return c.Explain(ctx, filepath.Base(path), path).Kind
}

// Explain classifies an artifact whose original file name is name and whose
// bytes are at path, reporting which rule decided.
func (c *Classifier) Explain(ctx context.Context, name, path string) Classification {
	lower := strings.ToLower(filepath.Base(name))

	for _, rule := range c.rules {
		if rule.Source == SourceExtension && rule.Match(lower) {
			return Classification{Kind: rule.Kind, Rule: rule.Name}
		}
	}

	mime := c.sniff(ctx, path)
	if mime != "" {
		for _, rule := range c.rules {
			if rule.Source == SourceMIME && rule.Match(mime) {
				return Classification{Kind: rule.Kind, Rule: rule.Name, MIME: mime}
			}
		}
	}

	return Classification{Kind: KindSingleFile, Rule: FallbackRule, MIME: mime}
}

func (c *Classifier) sniff(ctx context.Context, path string) string {
	if c.sniffer == nil || path == "" {
		return ""
	}

	mime, err := c.sniffer.Sniff(ctx, path)
	if err != nil {
		c.logger.Warn("content type detection failed, falling back to single file", "path", path, "error", err)
		return ""
	}
	return normalizeMIME(mime)
}

// normalizeMIME strips parameters ("; charset=binary") and case.
func normalizeMIME(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}
