package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	EngineCLI   = "cli"
	EngineGoGit = "gogit"
)

// Cloner copies a remote repository into dir. Stdout is whatever the clone
// printed on success.
type Cloner interface {
	Clone(ctx context.Context, url, dir string) (stdout string, err error)
}

// CloneError reports a failed clone. The destination is left as the clone
// left it.
type CloneError struct {
	Engine string
	URL    string
	Dir    string
	Stderr string
	Cause  error
}

func (e *CloneError) Error() string {
	msg := fmt.Sprintf("%s clone %s into %s failed: %v", e.Engine, e.URL, e.Dir, e.Cause)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CloneError) Unwrap() error { return e.Cause }

// NewCloner returns the cloner for the configured engine.
func NewCloner(engine, gitBinary string) (Cloner, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineCLI:
		return GitCLICloner{Binary: gitBinary}, nil
	case EngineGoGit:
		return GoGitCloner{}, nil
	default:
		return nil, fmt.Errorf("unsupported clone engine: %s", engine)
	}
}

// GitCLICloner runs `git clone <url> <dir>`.
type GitCLICloner struct {
	Binary string
}

func (c GitCLICloner) Clone(ctx context.Context, url, dir string) (string, error) {
	binary := strings.TrimSpace(c.Binary)
	if binary == "" {
		binary = "git"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "clone", url, dir)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = nil

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) && ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &CloneError{
			Engine: EngineCLI,
			URL:    url,
			Dir:    dir,
			Stderr: stderr.String(),
			Cause:  err,
		}
	}
	return stdout.String(), nil
}
