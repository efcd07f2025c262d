package protocol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/darkroom/internal/model"
)

// LoadError describes a failure while loading protocol definition files.
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

// Loader error codes.
const (
	ErrCodeNotFound   = "E_NOT_FOUND"
	ErrCodeNoFiles    = "E_NO_FILES"
	ErrCodeLoadFailed = "E_LOAD_FAILED"
	ErrCodeBadField   = "E_BAD_FIELD"
)

// LoadDefinitions loads every protocol definition from the CUE files in dir.
// Definitions appear under the top-level "protocol" struct, keyed by name:
//
//	protocol: novelty: {
//		kind: "semantic_novelty"
//		parameters: {
//			baseline_window: "3"
//			band_threshold:  "0.4"
//		}
//	}
//
// Definition hashes are NOT computed here; registration assigns them.
// Field order in the CUE source determines registration order.
func LoadDefinitions(dir string) ([]model.ProtocolDefinition, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("protocol directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing protocol directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	protocols := value.LookupPath(cue.ParsePath("protocol"))
	if !protocols.Exists() {
		return nil, &LoadError{Code: ErrCodeBadField, Message: `no top-level "protocol" struct found`}
	}

	iter, err := protocols.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBadField, Message: fmt.Sprintf("iterating protocols: %v", err)}
	}

	var defs []model.ProtocolDefinition
	for iter.Next() {
		def, err := compileDefinition(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, &LoadError{Code: ErrCodeBadField, Message: `"protocol" struct contains no definitions`}
	}
	return defs, nil
}

// compileDefinition parses one CUE protocol struct into a definition.
func compileDefinition(name string, v cue.Value) (model.ProtocolDefinition, error) {
	def := model.ProtocolDefinition{
		Name:       name,
		Parameters: map[string]string{},
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return def, &LoadError{Code: ErrCodeBadField, Message: fmt.Sprintf("protocol %q: kind is required", name), Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return def, &LoadError{Code: ErrCodeBadField, Message: fmt.Sprintf("protocol %q: kind: %v", name, err), Pos: kindVal.Pos()}
	}
	def.Kind = model.MetricKind(kind)
	if !def.Kind.Valid() {
		return def, &LoadError{Code: ErrCodeBadField, Message: fmt.Sprintf("protocol %q: unknown kind %q", name, kind), Pos: kindVal.Pos()}
	}

	paramsVal := v.LookupPath(cue.ParsePath("parameters"))
	if paramsVal.Exists() {
		iter, err := paramsVal.Fields()
		if err != nil {
			return def, &LoadError{Code: ErrCodeBadField, Message: fmt.Sprintf("protocol %q: parameters: %v", name, err), Pos: paramsVal.Pos()}
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return def, &LoadError{
					Code:    ErrCodeBadField,
					Message: fmt.Sprintf("protocol %q: parameter %q must be a string (numbers are carried as decimal strings): %v", name, iter.Label(), err),
					Pos:     iter.Value().Pos(),
				}
			}
			def.Parameters[iter.Label()] = s
		}
	}
	return def, nil
}

// findCUEFiles returns every .cue file directly inside dir.
func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cue") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}
