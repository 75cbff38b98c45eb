package state

import (
	"path/filepath"
	"sync"
	"time"
)

const projectsFileName = "projects.json"

// Project is a registered project record, shared on disk with the terminal
// UI peer.
type Project struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	ToolID       string    `json:"tool_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ProjectStore persists project records.
type ProjectStore struct {
	mu       sync.RWMutex
	projects []Project
	filePath string
}

// NewProjectStore loads projects.json from dir.
func NewProjectStore(dir string) *ProjectStore {
	s := &ProjectStore{filePath: filepath.Join(dir, projectsFileName)}
	ReadJSON(s.filePath, &s.projects)
	return s
}

// Lookup finds a project by name.
func (s *ProjectStore) Lookup(name string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// Register creates or replaces a project record.
func (s *ProjectStore) Register(p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}
	for i, existing := range s.projects {
		if existing.Name == p.Name {
			s.projects[i] = p
			return s.save()
		}
	}
	s.projects = append(s.projects, p)
	return s.save()
}

// List returns a copy of all project records.
func (s *ProjectStore) List() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, len(s.projects))
	copy(out, s.projects)
	return out
}

func (s *ProjectStore) save() error {
	return WriteJSONAtomic(s.filePath, s.projects)
}
