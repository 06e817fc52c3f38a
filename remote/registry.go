package remote

import (
	"fmt"
	"strings"

	"skillgap/logger"
	"skillgap/skill"
)

// DefaultSources are the curated repositories every client starts with.
func DefaultSources() []skill.RepoSource {
	return []skill.RepoSource{
		{Owner: "anthropics", Repo: "skills", Path: "skills", Branch: "main"},
		{Owner: "openai", Repo: "skills", Path: "skills/.curated", Branch: "main"},
	}
}

// Registry holds the configured repository sources in declaration order.
type Registry struct {
	sources []skill.RepoSource
	index   map[string]int
}

// NewRegistry creates a registry from a list of sources. Missing branches
// default to "main". Incomplete sources and later duplicates are dropped with
// a warning.
func NewRegistry(sources []skill.RepoSource, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	r := &Registry{index: make(map[string]int, len(sources))}
	for i, s := range sources {
		if err := r.Add(s); err != nil {
			log.Warn("remote.source_rejected", logger.Int("index", i), logger.Err(err))
		}
	}
	return r
}

// Add registers a source. It fails for incomplete or already registered
// sources.
func (r *Registry) Add(s skill.RepoSource) error {
	s = normalizeSource(s)
	if s.Owner == "" || s.Repo == "" {
		return fmt.Errorf("source needs owner and repo: %+v", s)
	}
	key := s.Key()
	if _, ok := r.index[key]; ok {
		return fmt.Errorf("source already registered: %s", key)
	}
	r.index[key] = len(r.sources)
	r.sources = append(r.sources, s)
	return nil
}

// Exists returns true if the source key is registered.
func (r *Registry) Exists(key string) bool {
	_, ok := r.index[key]
	return ok
}

// Lookup returns the source for the given key, or an error if not found.
func (r *Registry) Lookup(key string) (skill.RepoSource, error) {
	i, ok := r.index[key]
	if !ok {
		return skill.RepoSource{}, fmt.Errorf("source not registered: %s", key)
	}
	return r.sources[i], nil
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.sources)
}

// All returns the registered sources in declaration order.
func (r *Registry) All() []skill.RepoSource {
	out := make([]skill.RepoSource, len(r.sources))
	copy(out, r.sources)
	return out
}

// Keys returns all registered source keys in declaration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.sources))
	for i, s := range r.sources {
		keys[i] = s.Key()
	}
	return keys
}

// ParseSource parses "owner/repo[/path][@branch]".
func ParseSource(s string) (skill.RepoSource, error) {
	s = strings.TrimSpace(s)
	branch := ""
	if i := strings.LastIndex(s, "@"); i >= 0 {
		branch = s[i+1:]
		s = s[:i]
		if branch == "" {
			return skill.RepoSource{}, fmt.Errorf("empty branch in source %q", s)
		}
	}
	parts := strings.SplitN(strings.Trim(s, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return skill.RepoSource{}, fmt.Errorf("invalid source %q: want owner/repo[/path][@branch]", s)
	}
	src := skill.RepoSource{Owner: parts[0], Repo: parts[1], Branch: branch}
	if len(parts) == 3 {
		src.Path = parts[2]
	}
	return normalizeSource(src), nil
}

func normalizeSource(s skill.RepoSource) skill.RepoSource {
	s.Owner = strings.TrimSpace(s.Owner)
	s.Repo = strings.TrimSpace(s.Repo)
	s.Path = strings.Trim(strings.TrimSpace(s.Path), "/")
	s.Branch = strings.TrimSpace(s.Branch)
	if s.Branch == "" {
		s.Branch = "main"
	}
	return s
}
