package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	MessageAlreadyExists = "Repository already exists! Output folder ready."
	MessageDownloaded    = "Repository downloaded and output folder created!"
)

// State is the terminal state of one Ensure call.
type State string

const (
	StateAlreadyPresent State = "already_present"
	StateCloneSucceeded State = "clone_succeeded"
	StateCloneFailed    State = "clone_failed"
)

type Config struct {
	RepoURL   string
	RepoDir   string
	OutputDir string
}

type Result struct {
	State         State
	Message       string
	RepoPath      string
	OutputPath    string
	Stdout        string
	CloneDuration time.Duration
	Err           error
}

func (r Result) Success() bool {
	return r.State != StateCloneFailed
}

// Provisioner makes sure the external repository has been cloned and the
// output directory exists. The filesystem is the only state: a present
// repository directory is never updated or re-cloned, whatever its contents.
type Provisioner struct {
	logger    *log.Logger
	cloner    Cloner
	repoURL   string
	repoDir   string
	outputDir string
	tracer    trace.Tracer
}

func New(logger *log.Logger, cloner Cloner, cfg Config) (*Provisioner, error) {
	if cloner == nil {
		return nil, errors.New("cloner is required")
	}
	if strings.TrimSpace(cfg.RepoURL) == "" {
		return nil, errors.New("repository url is required")
	}
	if strings.TrimSpace(cfg.RepoDir) == "" {
		return nil, errors.New("repository directory is required")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, errors.New("output directory is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	repoDir, err := filepath.Abs(cfg.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("resolve repository directory: %w", err)
	}
	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	return &Provisioner{
		logger:    logger,
		cloner:    cloner,
		repoURL:   cfg.RepoURL,
		repoDir:   repoDir,
		outputDir: outputDir,
		tracer:    otel.Tracer("normalflow/provision"),
	}, nil
}

func (p *Provisioner) RepoDir() string {
	return p.repoDir
}

func (p *Provisioner) OutputDir() string {
	return p.outputDir
}

// Ensure runs one provisioning pass. There is no lock around the existence
// check: two first calls racing may both clone, and the loser reports the
// clone engine's collision error.
func (p *Provisioner) Ensure(ctx context.Context) Result {
	ctx, span := p.tracer.Start(ctx, "provision.ensure")
	span.SetAttributes(
		attribute.String("repo.url", p.repoURL),
		attribute.String("repo.dir", p.repoDir),
		attribute.String("output.dir", p.outputDir),
	)
	defer span.End()

	p.ensureOutputDir()

	if exists(p.repoDir) {
		span.SetAttributes(attribute.String("provision.state", string(StateAlreadyPresent)))
		span.SetStatus(codes.Ok, "already present")
		return Result{
			State:      StateAlreadyPresent,
			Message:    MessageAlreadyExists,
			RepoPath:   p.repoDir,
			OutputPath: p.outputDir,
		}
	}

	p.logger.Printf("cloning repository url=%s dir=%s", p.repoURL, p.repoDir)
	startedAt := time.Now()
	stdout, err := p.clone(ctx)
	elapsed := time.Since(startedAt)
	if err != nil {
		p.logger.Printf("clone failed url=%s dir=%s err=%v", p.repoURL, p.repoDir, err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("provision.state", string(StateCloneFailed)))
		span.SetStatus(codes.Error, "clone failed")
		return Result{
			State:         StateCloneFailed,
			CloneDuration: elapsed,
			Err:           err,
		}
	}

	p.logger.Printf("repository cloned dir=%s duration=%s", p.repoDir, elapsed.Round(time.Millisecond))
	span.SetAttributes(attribute.String("provision.state", string(StateCloneSucceeded)))
	span.SetStatus(codes.Ok, "cloned")
	return Result{
		State:         StateCloneSucceeded,
		Message:       MessageDownloaded,
		RepoPath:      p.repoDir,
		OutputPath:    p.outputDir,
		Stdout:        stdout,
		CloneDuration: elapsed,
	}
}

func (p *Provisioner) ensureOutputDir() {
	if exists(p.outputDir) {
		return
	}
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		p.logger.Printf("create output dir failed dir=%s err=%v", p.outputDir, err)
		return
	}
	p.logger.Printf("output directory created dir=%s", p.outputDir)
}

func (p *Provisioner) clone(ctx context.Context) (string, error) {
	ctx, span := p.tracer.Start(ctx, "provision.clone", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	stdout, err := p.cloner.Clone(ctx, p.repoURL, p.repoDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clone failed")
		return "", err
	}
	return stdout, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
