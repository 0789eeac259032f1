package manifest

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// LoadError describes why a manifest could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeNotFound     = "M001" // Path not found
	ErrCodeReadFailed   = "M002" // File read error
	ErrCodeUnsupported  = "M003" // Unknown manifest format
	ErrCodeParseFailed  = "M004" // YAML or CUE syntax error
	ErrCodeSchema       = "M005" // CUE value does not satisfy #Manifest
	ErrCodeInvalidEntry = "M006" // Bad version, empty SQL, sql+file
	ErrCodeDuplicate    = "M007" // Two migrations share a version
	ErrCodeBadFileName  = "M008" // .sql file not named NNNN_description.sql
)
