package policy

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadFile reads and compiles a scope-policy CUE file.
// The document must define a top-level "policy" struct.
func LoadFile(path string) (*ScopePolicy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return LoadBytes(path, src)
}

// LoadBytes compiles a scope-policy document from src.
// filename is used for error positions only.
func LoadBytes(filename string, src []byte) (*ScopePolicy, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("load policy %s: %w", filename, err)
	}
	return Compile(v.LookupPath(cue.ParsePath("policy")))
}
