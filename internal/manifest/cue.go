package manifest

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Schema is the CUE definition every CUE manifest is unified with.
const Schema = `
#Migration: {
	version:      int & >0 & <=4294967295
	description?: string
	sql?:         string
	file?:        string
}

#Manifest: {
	name?:      string
	target?:    int & >=0 & <=4294967295
	migrations: [...#Migration]
}
`

// ParseCUE evaluates a CUE manifest and checks it against #Manifest.
// filename is used in error positions.
func ParseCUE(data []byte, filename string) (*Manifest, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(Schema, cue.Filename("manifest_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(ErrCodeParseFailed, filename, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, filename, err)
	}

	var m Manifest
	if err := unified.Decode(&m); err != nil {
		return nil, cueLoadError(ErrCodeSchema, filename, err)
	}
	return &m, nil
}

// cueLoadError reports the first CUE error that has a position inside the
// manifest itself. Errors positioned only in Schema keep their schema
// position.
func cueLoadError(code, filename string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	for _, e := range errs {
		for _, pos := range cueerrors.Positions(e) {
			if pos.Filename() == filename {
				return &LoadError{Code: code, Message: e.Error(), Pos: pos}
			}
		}
	}
	return &LoadError{Code: code, Message: errs[0].Error(), Pos: errs[0].Position()}
}
