package services

import "errors"

var (
	// ErrStorageUnavailable wraps any failure of the visit log backend.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrArtifactGeneration covers a missing logo, an empty URL or a failed QR encode.
	ErrArtifactGeneration = errors.New("artifact generation failed")
	// ErrRender covers report building and report file I/O.
	ErrRender = errors.New("report render failed")
)
