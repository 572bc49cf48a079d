package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput is returned when input ends before a required answer was given.
var ErrNoInput = errors.New("no input: stdin closed before all questions were answered")

// Prompter asks questions on a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a prompter reading from in and writing questions to out.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Ask prints label and returns the answer, or def when the answer is blank.
func (p *Prompter) Ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}

	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// AskRequired repeats the question until a non-blank answer is given.
func (p *Prompter) AskRequired(label, def string) (string, error) {
	for {
		answer, err := p.Ask(label, def)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		fmt.Fprintln(p.out, "A value is required.")
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.out, "%s [%s] ", label, hint)

	response, err := p.readLine()
	if err != nil {
		return false, err
	}

	switch strings.ToLower(response) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Collect asks every question a run needs. Fields already set in defaults
// are offered as defaults.
func (p *Prompter) Collect(defaults Answers) (*Answers, error) {
	a := defaults
	var err error

	if a.Source, err = p.AskRequired("Source URL or path", a.Source); err != nil {
		return nil, err
	}

	toolDefault := a.ToolName
	if toolDefault == "" {
		toolDefault = DefaultToolName(a.Source)
	}
	if a.ToolName, err = p.AskRequired("Tool name", toolDefault); err != nil {
		return nil, err
	}

	if a.InstallBase, err = p.AskRequired("Install base directory", a.InstallBase); err != nil {
		return nil, err
	}

	if a.Checksum, err = p.Ask("SHA-256 checksum (blank to skip)", a.Checksum); err != nil {
		return nil, err
	}

	if a.Signature, err = p.Ask("Detached signature file (blank to skip)", a.Signature); err != nil {
		return nil, err
	}
	if a.Signature != "" {
		if a.PublicKey, err = p.AskRequired("Public key file", a.PublicKey); err != nil {
			return nil, err
		}
	}

	if a.RunOnce, err = p.Confirm("Run the tool once after install?", a.RunOnce); err != nil {
		return nil, err
	}

	if a.Service, err = p.Confirm("Install a systemd service?", a.Service); err != nil {
		return nil, err
	}
	if a.Service {
		if a.ServiceDescription, err = p.Ask("Service description", a.ServiceDescription); err != nil {
			return nil, err
		}
		if a.ExecStart, err = p.Ask("Service command (blank = installed executable)", a.ExecStart); err != nil {
			return nil, err
		}
	}

	return &a, nil
}
