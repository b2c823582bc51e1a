// Package scriptstore holds the in-memory, process-lifetime mapping
// of script name to content that the LLM authors through create/
// update/view tool calls. Nothing here survives a process restart.
package scriptstore

import (
	"fmt"
	"strings"
	"sync"
)

// Script is one named TypeScript source the LLM is authoring.
type Script struct {
	Name    string
	Content string
}

// Edit is one ordered replacement applied by Update.
type Edit struct {
	OldStr string
	NewStr string
}

// Validator runs structural validation over a script's content. The
// store persists regardless of the result — the LLM must see its own
// errors, not be blocked by them.
type Validator func(content string) (ValidationResult, error)

// ValidationResult is whatever the structural validator (or, by
// convention, a wrapping tsc validation) reports back to the caller.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Store is a guarded name -> Script map.
type Store struct {
	mu       sync.Mutex
	scripts  map[string]*Script
	validate Validator
}

// New builds an empty store. validate may be nil, in which case
// Create/Update report Valid:true unconditionally.
func New(validate Validator) *Store {
	return &Store{scripts: make(map[string]*Script), validate: validate}
}

// Create saves a new script under name, which must match
// "script://*.ts" and not already exist. The structural validator
// runs and its result is always returned, but never blocks the save.
func (s *Store) Create(name, content string) (ValidationResult, error) {
	if err := validateName(name); err != nil {
		return ValidationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scripts[name]; exists {
		return ValidationResult{}, fmt.Errorf("script %q already exists", name)
	}

	s.scripts[name] = &Script{Name: name, Content: content}
	return s.runValidator(content)
}

// Update applies edits in order against name's current content. Each
// OldStr must match exactly once at the time it is processed — an
// earlier edit may create or remove the match a later one needs.
// Errors are tagged with the 1-based edit index. Persistence happens
// unconditionally, independent of the validation result.
func (s *Store) Update(name string, edits []Edit) (ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	script, ok := s.scripts[name]
	if !ok {
		return ValidationResult{}, fmt.Errorf("script %q not found", name)
	}

	content := script.Content
	for i, edit := range edits {
		idx := i + 1
		count := strings.Count(content, edit.OldStr)
		switch {
		case edit.OldStr == "":
			return ValidationResult{}, fmt.Errorf("edit %d: old_str must not be empty", idx)
		case count == 0:
			return ValidationResult{}, fmt.Errorf("edit %d: string not found: %q", idx, edit.OldStr)
		case count > 1:
			return ValidationResult{}, fmt.Errorf("edit %d: must be unique, found %d occurrences of %q", idx, count, edit.OldStr)
		}
		content = strings.Replace(content, edit.OldStr, edit.NewStr, 1)
	}

	script.Content = content
	return s.runValidator(content)
}

// View returns the current content of name, or false if it doesn't exist.
func (s *Store) View(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	script, ok := s.scripts[name]
	if !ok {
		return "", false
	}
	return script.Content, true
}

func (s *Store) runValidator(content string) (ValidationResult, error) {
	if s.validate == nil {
		return ValidationResult{Valid: true}, nil
	}
	return s.validate(content)
}

func validateName(name string) error {
	if !strings.HasPrefix(name, "script://") {
		return fmt.Errorf("script name %q must begin with \"script://\"", name)
	}
	if !strings.HasSuffix(name, ".ts") {
		return fmt.Errorf("script name %q must end with \".ts\"", name)
	}
	return nil
}

// BaseName strips the "script://" scheme, returning the on-disk
// filename tail. Both the scheme and the tail are preserved
// separately per spec's "script identity as URI" note — this
// function never mutates Script.Name itself.
func BaseName(name string) string {
	return strings.TrimPrefix(name, "script://")
}
