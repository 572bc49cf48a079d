package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func staticSniffer(mime string) SnifferFunc {
	return func(ctx context.Context, path string) (string, error) {
		return mime, nil
	}
}

func TestClassifyByExtension(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Kind
	}{
		{name: "deb", path: "/tmp/tool_1.0_amd64.deb", want: KindPackage},
		{name: "tar.gz", path: "/tmp/app.tar.gz", want: KindTarball},
		{name: "tgz", path: "/tmp/app.tgz", want: KindTarball},
		{name: "zip", path: "/tmp/app.zip", want: KindZip},
		{name: "upper case", path: "/tmp/APP.TGZ", want: KindTarball},
		{name: "plain tar is not a tarball", path: "/tmp/app.tar", want: KindSingleFile},
		{name: "extensionless", path: "/tmp/app", want: KindSingleFile},
	}

	// A sniffer that would contradict every extension rule.
	c := NewClassifier(staticSniffer("text/plain"), nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(context.Background(), tt.path))
		})
	}
}

func TestClassifyByMIME(t *testing.T) {
	tests := []struct {
		mime string
		want Kind
	}{
		{mime: "application/x-debian-package", want: KindPackage},
		{mime: "application/vnd.debian.binary-package", want: KindPackage},
		{mime: "application/gzip", want: KindTarball},
		{mime: "application/x-gzip", want: KindTarball},
		{mime: "application/zip", want: KindZip},
		{mime: "application/zip; charset=binary", want: KindZip},
		{mime: "Application/ZIP", want: KindZip},
		{mime: "application/x-executable", want: KindSingleFile},
		{mime: "", want: KindSingleFile},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			c := NewClassifier(staticSniffer(tt.mime), nil)
			assert.Equal(t, tt.want, c.Classify(context.Background(), "/tmp/download"))
		})
	}
}

func TestExplainReportsRule(t *testing.T) {
	c := NewClassifier(staticSniffer("application/zip"), nil)

	got := c.Explain(context.Background(), "app.tgz", "/cache/app.tgz")
	assert.Equal(t, Classification{Kind: KindTarball, Rule: "ext:.tar.gz"}, got)

	got = c.Explain(context.Background(), "download", "/cache/download")
	assert.Equal(t, Classification{Kind: KindZip, Rule: "mime:zip", MIME: "application/zip"}, got)

	c = NewClassifier(staticSniffer("text/x-shellscript"), nil)
	got = c.Explain(context.Background(), "install.sh", "/cache/install.sh")
	assert.Equal(t, Classification{Kind: KindSingleFile, Rule: FallbackRule, MIME: "text/x-shellscript"}, got)
}

func TestExtensionSkipsSniffing(t *testing.T) {
	called := false
	c := NewClassifier(SnifferFunc(func(ctx context.Context, path string) (string, error) {
		called = true
		return "application/zip", nil
	}), nil)

	assert.Equal(t, KindPackage, c.Classify(context.Background(), "/tmp/a.deb"))
	assert.False(t, called, "sniffer must not run when an extension matched")
}

func TestSnifferFailureFallsBack(t *testing.T) {
	c := NewClassifier(SnifferFunc(func(ctx context.Context, path string) (string, error) {
		return "", errors.New("file: command not found")
	}), nil)

	assert.Equal(t, KindSingleFile, c.Classify(context.Background(), "/tmp/app"))
}

func TestNilSniffer(t *testing.T) {
	c := NewClassifier(nil, nil)
	assert.Equal(t, KindSingleFile, c.Classify(context.Background(), "/tmp/app"))
	assert.Equal(t, KindZip, c.Classify(context.Background(), "/tmp/app.zip"))
}

func TestCustomRules(t *testing.T) {
	c := NewClassifier(nil, nil).withRules([]Rule{
		{Name: "ext:.tar", Source: SourceExtension, Match: hasSuffix(".tar"), Kind: KindTarball},
	})
	assert.Equal(t, KindTarball, c.Classify(context.Background(), "/tmp/a.tar"))
	assert.Equal(t, KindSingleFile, c.Classify(context.Background(), "/tmp/a.zip"))
}

// Extension rules win regardless of what the content sniffer says.
func TestExtensionPriorityProperty(t *testing.T) {
	extensions := map[string]Kind{
		".deb":    KindPackage,
		".tar.gz": KindTarball,
		".tgz":    KindTarball,
		".zip":    KindZip,
	}
	suffixes := make([]string, 0, len(extensions))
	for ext := range extensions {
		suffixes = append(suffixes, ext)
	}
	mimes := []string{
		"", "application/zip", "application/gzip", "application/x-debian-package",
		"text/plain", "application/octet-stream",
	}

	rapid.Check(t, func(t *rapid.T) {
		stem := rapid.StringMatching(`[A-Za-z0-9_-]{1,16}`).Draw(t, "stem")
		ext := rapid.SampledFrom(suffixes).Draw(t, "ext")
		mime := rapid.SampledFrom(mimes).Draw(t, "mime")

		c := NewClassifier(staticSniffer(mime), nil)
		if got := c.Classify(context.Background(), "/tmp/"+stem+ext); got != extensions[ext] {
			t.Fatalf("Classify(%s%s) with mime %q = %v, want %v", stem, ext, mime, got, extensions[ext])
		}
	})
}

// Classification is total: any name and any sniffed type yields a known Kind.
func TestClassificationIsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "name")
		mime := rapid.String().Draw(t, "mime")

		kind := NewClassifier(staticSniffer(mime), nil).Classify(context.Background(), name)
		if kind.String() == "unknown" {
			t.Fatalf("Classify(%q) produced an unknown kind", name)
		}
	})
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(k.String())
		assert.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("rpm")
	assert.Error(t, err)
}
