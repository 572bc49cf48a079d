// Package service provides the post-install actions: running the installed
// tool once and registering it as a systemd service.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// UnitPermissions is the mode of written unit files.
const UnitPermissions = 0644

// ErrEmptyExecStart is returned when a unit has no command to run.
var ErrEmptyExecStart = errors.New("unit has no ExecStart command")

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description={{.Description}}
After=network.target

[Service]
ExecStart={{.ExecStart}}
Restart=on-failure
User=root

[Install]
WantedBy=multi-user.target
`))

// Unit is a minimal systemd service definition.
type Unit struct {
	// Name is the unit name without the .service suffix.
	Name        string
	Description string
	ExecStart   string
}

// FileName returns "<name>.service".
func (u Unit) FileName() string {
	return u.Name + ".service"
}

// Validate checks the fields that end up in the unit file.
func (u Unit) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.New("unit name must not be empty")
	}
	if strings.ContainsAny(u.Name, "/\x00") {
		return fmt.Errorf("invalid unit name %q", u.Name)
	}
	if strings.TrimSpace(u.ExecStart) == "" {
		return ErrEmptyExecStart
	}
	// A newline would let a field inject extra directives.
	if strings.ContainsAny(u.ExecStart+u.Description, "\r\n") {
		return errors.New("unit fields must be single-line")
	}
	return nil
}

// Render returns the unit file contents.
func (u Unit) Render() (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	if u.Description == "" {
		u.Description = u.Name + " (installed by zinst)"
	}

	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, u); err != nil {
		return "", fmt.Errorf("render unit: %w", err)
	}
	return buf.String(), nil
}
