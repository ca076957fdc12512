package api

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/MrWong99/wavscribe/internal/transcribe"
)

// errPathNotAllowed rejects request paths outside the directories the
// server exposes.
var errPathNotAllowed = errors.New("path not allowed")

// WithInputDir resolves request inputs relative to dir. Without it they are
// resolved against the working directory. Either way inputs must be local
// relative paths.
func WithInputDir(dir string) Option {
	return func(s *Server) { s.inputDir = dir }
}

// WithModelDir lets requests pick model files from dir by relative name.
// Without it a request may only repeat the configured model.
func WithModelDir(dir string) Option {
	return func(s *Server) { s.modelDir = dir }
}

// confine rewrites the inputs and model of p to server paths, rejecting
// anything that would escape them. configured is the default model.
func (s *Server) confine(p *transcribe.Params, configured string) error {
	for i, in := range p.Inputs {
		if !filepath.IsLocal(in) {
			return fmt.Errorf("%w: input %q must be a relative path inside the input directory", errPathNotAllowed, in)
		}
		if s.inputDir != "" {
			p.Inputs[i] = filepath.Join(s.inputDir, in)
		}
	}

	// An empty model is left to the run checks.
	if p.Model == "" || p.Model == configured {
		return nil
	}
	if s.modelDir == "" || !filepath.IsLocal(p.Model) {
		return fmt.Errorf("%w: model %q is not selectable", errPathNotAllowed, p.Model)
	}
	p.Model = filepath.Join(s.modelDir, p.Model)
	return nil
}
