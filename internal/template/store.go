// Package template manages named formatting templates persisted on disk.
// Templates are role-keyed partial rules; the pipeline hands them to the
// rule resolver as a mid-precedence source.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/waterdrop26651/FormulaAI/internal/rules"
)

// Template is one named rule source, stored as a .json or .yaml file.
type Template struct {
	Name        string                      `json:"name" yaml:"name"`
	Description string                      `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       map[string]rules.FormatRule `json:"rules" yaml:"rules"`
}

// Validate rejects templates that could not survive resolver construction.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template has no name")
	}
	if len(t.Rules) == 0 {
		return fmt.Errorf("template %q has no rules", t.Name)
	}
	for role, rule := range t.Rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("template %q, role %q: %w", t.Name, role, err)
		}
	}
	return nil
}

// RuleSet converts the template into a resolver source.
func (t *Template) RuleSet() rules.RuleSet {
	return rules.RuleSet{Name: "template:" + t.Name, Rules: t.Rules}
}

// Store is a thread-safe template registry backed by a directory of
// .json/.yaml files.
type Store struct {
	mu        sync.RWMutex
	dir       string
	templates map[string]Template
	log       *slog.Logger
}

// NewStore creates a store over dir and loads every template in it.
// Unreadable or invalid files are logged and skipped, not fatal.
func NewStore(dir string, log *slog.Logger) (*Store, error) {
	s := &Store{
		dir:       dir,
		templates: make(map[string]Template),
		log:       log,
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("templates dir does not exist", "dir", s.dir)
			return nil
		}
		return fmt.Errorf("read templates dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(s.dir, name)
		tpl, err := loadFile(path)
		if err != nil {
			s.log.Error("skipping template", "path", path, "error", err)
			continue
		}
		s.templates[tpl.Name] = tpl
		s.log.Debug("loaded template", "name", tpl.Name)
	}

	s.log.Info("templates loaded", "count", len(s.templates))
	return nil
}

func loadFile(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, err
	}

	var tpl Template
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&tpl); err != nil {
			return Template{}, fmt.Errorf("decode json: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&tpl); err != nil {
			return Template{}, fmt.Errorf("decode yaml: %w", err)
		}
	}

	if tpl.Name == "" {
		tpl.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := tpl.Validate(); err != nil {
		return Template{}, err
	}
	return tpl, nil
}

// Get returns a template by name.
func (s *Store) Get(name string) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[name]
	return tpl, ok
}

// Names returns all template names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Put validates, stores and persists a template as JSON.
func (s *Store) Put(tpl Template) error {
	if err := tpl.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create templates dir: %w", err)
	}
	data, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	path := filepath.Join(s.dir, safeFilename(tpl.Name)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}

	s.templates[tpl.Name] = tpl
	s.log.Info("saved template", "name", tpl.Name)
	return nil
}

// Delete removes a template from memory and disk.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[name]; !ok {
		return fmt.Errorf("template not found: %s", name)
	}
	delete(s.templates, name)

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(s.dir, safeFilename(name)+ext)
		if err := os.Remove(path); err == nil {
			break
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("remove template file: %w", err)
		}
	}
	s.log.Info("deleted template", "name", name)
	return nil
}

// safeFilename keeps template filenames path-safe.
func safeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
