package renderer

import "errors"

var (
	ErrSceneNotDefined = errors.New("renderer: no scene defined")
	ErrInvalidFrame    = errors.New("renderer: frame dimensions must be positive")
	ErrInterrupted     = errors.New("renderer: interrupted while rendering")
)
