// Package pdf extracts text from PDF documents using the pdftotext
// tool from poppler-utils.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/vectra-cli/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes an external command and returns its stdout.
// Injectable for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Normaliser extracts PDF text by shelling out to pdftotext.
type Normaliser struct {
	runner CommandRunner
}

// New creates a new PDF normaliser using the system pdftotext.
func New() *Normaliser {
	return &Normaliser{runner: execRunner{}}
}

// NewWithRunner creates a PDF normaliser with a custom command runner.
func NewWithRunner(runner CommandRunner) *Normaliser {
	return &Normaliser{runner: runner}
}

// MimeTypes returns the media types this normaliser handles.
func (n *Normaliser) MimeTypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise writes the raw PDF to a temporary file and extracts its
// text with pdftotext.
func (n *Normaliser) Normalise(ctx context.Context, name string, raw []byte) (string, error) {
	if err := CheckAvailable(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "vectra-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	// "-" sends the extracted text to stdout.
	out, err := n.runner.Run(ctx, "pdftotext", "-layout", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed for %s: %w", filepath.Base(name), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// CheckAvailable reports whether pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns platform hints for installing pdftotext.
func InstallInstructions() string {
	return `pdftotext is required for PDF ingestion.

  macOS:  brew install poppler
  Debian: apt install poppler-utils
  Fedora: dnf install poppler-utils`
}
