package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hackrange/ctf-engine/internal/models"
)

// Loader manages the challenge catalog. Challenges are defined as YAML
// files in a directory (optionally grouped into category subdirectories),
// loaded at startup and replaced wholesale on reload.
type Loader struct {
	mu         sync.RWMutex
	challenges map[string]*models.Challenge
	order      []string // ids in deterministic listing order
}

// NewLoader creates a new challenge catalog loader
func NewLoader() *Loader {
	return &Loader{
		challenges: make(map[string]*models.Challenge),
	}
}

// LoadFromDir loads all YAML challenge definitions from a directory.
// The previous catalog is replaced only if loading succeeds.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading challenges from directory", "dir", dir)

	patterns := []string{"*.yaml", "*.yml"}
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)

		// Category subdirectories
		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err != nil {
			continue
		}
		files = append(files, subMatches...)
	}

	if len(files) == 0 {
		return fmt.Errorf("no challenge definitions found in %s", dir)
	}

	sort.Strings(files)

	loaded := make(map[string]*models.Challenge, len(files))
	var order []string

	for _, file := range files {
		ch, err := loadFile(file)
		if err != nil {
			return fmt.Errorf("failed to load challenge from %s: %w", file, err)
		}
		if _, exists := loaded[ch.ID]; exists {
			return fmt.Errorf("duplicate challenge id %q in %s", ch.ID, file)
		}
		loaded[ch.ID] = ch
		order = append(order, ch.ID)
	}

	l.mu.Lock()
	l.challenges = loaded
	l.order = order
	l.mu.Unlock()

	slog.Info("challenges loaded", "count", len(loaded))
	return nil
}

// loadFile parses and validates a single challenge definition
func loadFile(path string) (*models.Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var ch models.Challenge
	if err := yaml.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Fall back to the filename for the id
	if ch.ID == "" {
		base := filepath.Base(path)
		ch.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := ch.Validate(); err != nil {
		return nil, err
	}

	return &ch, nil
}

// Get retrieves a challenge by id
func (l *Loader) Get(id string) *models.Challenge {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.challenges[id]
}

// List returns all challenges in load order
func (l *Loader) List() []*models.Challenge {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Challenge, 0, len(l.order))
	for _, id := range l.order {
		result = append(result, l.challenges[id])
	}
	return result
}

// ListByCategory returns all challenges in a category, in load order
func (l *Loader) ListByCategory(category models.Category) []*models.Challenge {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*models.Challenge
	for _, id := range l.order {
		if l.challenges[id].Category == category {
			result = append(result, l.challenges[id])
		}
	}
	return result
}

// Points returns a lookup of challenge id to point value
func (l *Loader) Points() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	points := make(map[string]int, len(l.challenges))
	for id, ch := range l.challenges {
		points[id] = ch.Points
	}
	return points
}

// Add programmatically adds a challenge. Used by the target provisioner
// to attach credentials and by tests.
func (l *Loader) Add(ch *models.Challenge) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.challenges[ch.ID]; !exists {
		l.order = append(l.order, ch.ID)
	}
	l.challenges[ch.ID] = ch
}

// Len returns the number of loaded challenges
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.challenges)
}
