package execx

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Call is one invocation recorded by Fake.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is what Fake returns for a matching command line.
type Response struct {
	Stdout string
	Stderr string
	Code   int // non-zero produces a *CommandError
	// Hook runs before the response is returned; tests use it to create
	// files a real command would have produced.
	Hook func(args []string) error
}

// Fake is a scripted Runner for tests. Responses are keyed by the full
// command line; a key may hold several responses consumed in order, the last
// one repeating.
type Fake struct {
	Responses map[string][]Response
	// Missing lists commands LookPath must report as absent.
	Missing map[string]bool
	Calls   []Call
}

// NewFake creates an empty Fake. Unscripted commands succeed with no output.
func NewFake() *Fake {
	return &Fake{
		Responses: make(map[string][]Response),
		Missing:   make(map[string]bool),
	}
}

// On scripts the responses for a command line.
func (f *Fake) On(cmdline string, responses ...Response) *Fake {
	f.Responses[cmdline] = append(f.Responses[cmdline], responses...)
	return f
}

// Run records the call and replays the scripted response.
func (f *Fake) Run(ctx context.Context, name string, args ...string) (Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	f.Calls = append(f.Calls, call)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if f.Missing[name] {
		return Result{}, &CommandError{Name: name, Args: args, Code: -1, Err: errors.New("executable file not found in $PATH")}
	}

	key := call.String()
	queue := f.Responses[key]
	if len(queue) == 0 {
		return Result{}, nil
	}

	resp := queue[0]
	if len(queue) > 1 {
		f.Responses[key] = queue[1:]
	}

	if resp.Hook != nil {
		if err := resp.Hook(args); err != nil {
			return Result{}, err
		}
	}

	if resp.Code != 0 {
		return Result{Stdout: resp.Stdout, Stderr: resp.Stderr}, &CommandError{
			Name:   name,
			Args:   args,
			Code:   resp.Code,
			Stderr: resp.Stderr,
			Err:    fmt.Errorf("exit status %d", resp.Code),
		}
	}
	return Result{Stdout: resp.Stdout, Stderr: resp.Stderr}, nil
}

// LookPath reports commands in Missing as absent and everything else as
// present under /usr/bin.
func (f *Fake) LookPath(name string) (string, error) {
	if f.Missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// CommandLines returns the recorded calls as command lines.
func (f *Fake) CommandLines() []string {
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.String()
	}
	return lines
}
