package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Set is the result of loading a manifest directory.
type Set struct {
	Dir        string
	Components []*Component
	Value      cue.Value // the raw CUE value
	FileCount  int
}

// Lookup returns the component declared under name, or by tag.
func (s *Set) Lookup(name string) (*Component, bool) {
	for _, c := range s.Components {
		if c.Name == name || c.Tag == name {
			return c, true
		}
	}
	return nil, false
}

// Names returns component names in declaration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.Components))
	for i, c := range s.Components {
		names[i] = c.Name
	}
	return names
}

// Load loads and compiles every component declared in dir.
// In LoadModeFailFast it returns on the first error; in LoadModeCollectAll
// it keeps the components that compiled and returns every error.
func Load(dir string, mode LoadMode) (*Set, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&CompileError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&CompileError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing manifest directory: %v", err), Err: err}}
	}
	if !info.IsDir() {
		return nil, []error{&CompileError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&CompileError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Err: err}}
	}
	if len(files) == 0 {
		return nil, []error{&CompileError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	loadDir := dir
	if abs, err := filepath.Abs(dir); err == nil {
		loadDir = abs
	}
	instances := load.Instances([]string{"."}, &load.Config{Dir: loadDir})
	if len(instances) == 0 {
		return nil, []error{&CompileError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError(inst.Err, ErrCodeLoadFailed, "", "")}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err, ErrCodeBuildFailed, "", "")}
	}

	set := &Set{Dir: dir, Value: value, FileCount: len(files)}
	var errs []error
	fail := func(err error) bool {
		errs = append(errs, err)
		return mode == LoadModeFailFast
	}

	components := value.LookupPath(cue.ParsePath("component"))
	if !components.Exists() {
		return set, []error{&CompileError{Code: ErrCodeGeneric, Message: "no components found in manifests"}}
	}
	iter, err := components.Fields()
	if err != nil {
		return set, []error{formatCUEError(err, ErrCodeGeneric, "", "component")}
	}

	tags := map[string]string{}
	for iter.Next() {
		c, err := CompileComponent(iter.Value(), dir)
		if err != nil {
			if fail(err) {
				return set, errs
			}
			continue
		}
		if other, dup := tags[c.Tag]; dup {
			err := &CompileError{
				Code:      ErrCodeDuplicateTag,
				Component: c.Name,
				Field:     "tag",
				Message:   fmt.Sprintf("tag %q already used by %s", c.Tag, other),
				Pos:       posOf(iter.Value(), "tag"),
			}
			if fail(err) {
				return set, errs
			}
			continue
		}
		tags[c.Tag] = c.Name
		set.Components = append(set.Components, c)
	}

	if len(set.Components) == 0 && len(errs) == 0 {
		errs = append(errs, &CompileError{Code: ErrCodeGeneric, Message: "no components found in manifests"})
	}
	return set, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
