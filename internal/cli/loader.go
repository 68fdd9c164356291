package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/petracek/modelite/internal/compiler"
	"github.com/petracek/modelite/internal/model"
)

// LoadResult contains the declarations loaded from a directory.
type LoadResult struct {
	Declarations []model.Declaration
	CUEValue     cue.Value // the raw CUE value for additional processing
	FileCount    int       // number of CUE files found
}

// LoadError represents an error that occurred while loading declarations.
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

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeDeclaration  = "E101" // Declaration does not compile
	ErrCodeRegistration = "E102" // Declaration rejected by the registry
)

// LoadDeclarations loads and compiles the CUE model declarations under dir.
// Declarations must appear in dependency order so ref targets resolve.
func LoadDeclarations(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("declarations directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing declarations directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	decls, err := compiler.CompileModels(value)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{
		Declarations: decls,
		CUEValue:     value,
		FileCount:    len(cueFiles),
	}, nil
}

// FindCUEFiles walks dir and collects every .cue file path under it.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position
// information when the compiler recorded one.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeDeclaration,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeDeclaration,
		Message: err.Error(),
	}
}

// ModelReport is the per-declaration outcome of registration.
type ModelReport struct {
	Name        string `json:"name"`
	Table       string `json:"table,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
}

// registerAll registers every declaration into a fresh registry, continuing
// past failures so one bad declaration does not hide reports for the rest.
// Dependents of a rejected declaration fail with their own ref errors.
func registerAll(decls []model.Declaration) (*model.Registry, []ModelReport) {
	reg := model.NewRegistry()
	reports := make([]ModelReport, 0, len(decls))
	for _, decl := range decls {
		s, err := reg.Register(decl)
		if err != nil {
			reports = append(reports, ModelReport{
				Name:  decl.Name,
				Valid: false,
				Error: err.Error(),
			})
			continue
		}
		reports = append(reports, ModelReport{
			Name:        s.Name(),
			Table:       s.Table(),
			Fingerprint: fingerprintPrefix(s.Fingerprint()),
			Valid:       true,
		})
	}
	return reg, reports
}

// fingerprintPrefix shortens a schema fingerprint for display.
func fingerprintPrefix(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
