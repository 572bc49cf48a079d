// Package prompt gathers the per-run answers: the install source, tool
// name, verification material and post-install choices. Answers come from
// an interactive terminal session or from a YAML answers file.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Answers holds everything a run needs from the user.
type Answers struct {
	Source             string `yaml:"source" json:"source"`
	ToolName           string `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
	InstallBase        string `yaml:"install_base,omitempty" json:"install_base,omitempty"`
	Kind               string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Checksum           string `yaml:"checksum,omitempty" json:"checksum,omitempty"`
	Signature          string `yaml:"signature,omitempty" json:"signature,omitempty"`
	PublicKey          string `yaml:"public_key,omitempty" json:"public_key,omitempty"`
	RunOnce            bool   `yaml:"run,omitempty" json:"run,omitempty"`
	Service            bool   `yaml:"service,omitempty" json:"service,omitempty"`
	ServiceDescription string `yaml:"service_description,omitempty" json:"service_description,omitempty"`
	// ExecStart overrides the unit command. Package installs need it
	// because their executable is not discovered.
	ExecStart string `yaml:"exec_start,omitempty" json:"exec_start,omitempty"`
}

const answersSchemaURL = "zinst://answers.schema.json"

const answersSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["source"],
  "additionalProperties": false,
  "properties": {
    "source":              {"type": "string", "minLength": 1},
    "tool_name":           {"type": "string", "minLength": 1},
    "install_base":        {"type": "string", "pattern": "^/"},
    "kind":                {"enum": ["package", "deb", "tarball", "tar.gz", "tgz", "zip", "single-file", "file", "binary"]},
    "checksum":            {"type": "string"},
    "signature":           {"type": "string"},
    "public_key":          {"type": "string"},
    "run":                 {"type": "boolean"},
    "service":             {"type": "boolean"},
    "service_description": {"type": "string"},
    "exec_start":          {"type": "string"}
  },
  "dependentRequired": {
    "signature": ["public_key"]
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func answersSchemaValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(answersSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parse answers schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(answersSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add answers schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(answersSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile answers schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// ParseAnswers decodes a YAML answers document and validates it against
// the answers schema.
func ParseAnswers(data []byte) (*Answers, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("answers file is empty")
	}

	// Round-trip through JSON so the validator sees plain JSON values.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("answers are not representable as JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}

	sch, err := answersSchemaValidator()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid answers: %w", err)
	}

	var a Answers
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	return &a, nil
}

// LoadAnswers reads and validates the answers file at path.
func LoadAnswers(path string) (*Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers file: %w", err)
	}
	return ParseAnswers(data)
}

// MarshalAnswers renders a as YAML, the format LoadAnswers reads.
func MarshalAnswers(a *Answers) ([]byte, error) {
	return yaml.Marshal(a)
}

// archiveSuffixes are stripped by DefaultToolName, longest first.
var archiveSuffixes = []string{".tar.gz", ".tgz", ".zip", ".deb"}

// DefaultToolName proposes a tool name from a source URL or path: the base
// name without archive suffix, cut at the first '_' for Debian-style
// "name_version_arch" file names.
func DefaultToolName(source string) string {
	base := path.Base(strings.TrimRight(strings.ReplaceAll(source, "\\", "/"), "/"))
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	lower := strings.ToLower(base)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			base = base[:len(base)-len(suffix)]
			break
		}
	}
	if i := strings.IndexByte(base, '_'); i > 0 {
		base = base[:i]
	}
	if base == "." || base == "/" {
		return ""
	}
	return base
}
