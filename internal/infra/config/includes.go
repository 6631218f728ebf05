package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const maxIncludeDepth = 10

// includeLoader merges the files named by a config's includes list. Theme
// packs are the typical use: a main config includes "themes/*.yaml" and each
// file contributes entries to transition.themes.
type includeLoader struct {
	visited map[string]bool
}

// processIncludes merges the files referenced by cfg.Includes into cfg.
// basePath is the directory of the file that declared them.
func processIncludes(cfg *Config, basePath string, visited map[string]bool, depth int) error {
	if visited == nil {
		visited = make(map[string]bool)
	}
	l := &includeLoader{visited: visited}
	return l.load(cfg, basePath, depth)
}

func (l *includeLoader) load(cfg *Config, basePath string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("config includes: max depth %d exceeded", maxIncludeDepth)
	}

	patterns := cfg.Includes
	cfg.Includes = nil
	for _, pattern := range patterns {
		paths, err := resolveIncludePaths(pattern, basePath)
		if err != nil {
			return err
		}
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("config includes: abs path %q: %w", p, err)
			}
			if l.visited[abs] {
				return fmt.Errorf("config includes: circular include detected for %q", abs)
			}
			l.visited[abs] = true

			if err := l.merge(cfg, abs, depth+1); err != nil {
				return err
			}
		}
	}
	cfg.Includes = nil
	return nil
}

func (l *includeLoader) merge(cfg *Config, path string, depth int) error {
	if err := validatePermissions(path); err != nil {
		return fmt.Errorf("config includes: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config includes: read %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}

	cfg.Includes = nil
	if err := overlay(cfg, data); err != nil {
		return fmt.Errorf("config includes: parse %q: %w", path, err)
	}
	if len(cfg.Includes) > 0 {
		return l.load(cfg, filepath.Dir(path), depth)
	}
	return nil
}

// overlay unmarshals data onto cfg. Scalars and maps are overwritten as
// usual; transition.themes are merged by key instead of replaced, so a file
// that declares one theme does not drop the others.
func overlay(cfg *Config, data []byte) error {
	existing := cfg.Transition.Themes
	cfg.Transition.Themes = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg.Transition.Themes = existing
		return err
	}
	cfg.Transition.Themes = mergeThemes(existing, cfg.Transition.Themes)
	return nil
}

// mergeThemes returns base with each theme in next replacing the entry of
// the same key, or appended when the key is new. Order of first appearance
// is kept.
func mergeThemes(base, next []ThemeConfig) []ThemeConfig {
	out := make([]ThemeConfig, 0, len(base)+len(next))
	out = append(out, base...)
	for _, th := range next {
		replaced := false
		for i := range out {
			if out[i].Key == th.Key {
				out[i] = th
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, th)
		}
	}
	return out
}

// resolveIncludePaths expands pattern relative to baseDir. The result must
// not escape baseDir.
func resolveIncludePaths(pattern, baseDir string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(baseDir, pattern)
	}
	pattern = filepath.Clean(pattern)

	if rel, err := filepath.Rel(baseDir, pattern); err == nil && strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("config includes: path %q escapes config directory", pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config includes: glob %q: %w", pattern, err)
	}
	if len(matches) > 0 {
		return matches, nil
	}
	// A literal path that does not exist is reported by merge; an empty glob
	// is fine.
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	return nil, nil
}
