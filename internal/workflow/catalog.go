package workflow

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"careercoach/internal/types"

	"gopkg.in/yaml.v3"
)

const (
	QuestionnaireLength = 15
	OptionsPerQuestion  = 5
)

//go:embed questionnaire.yaml
var defaultCatalog []byte

type catalogFile struct {
	Questions []types.QuestionnaireQuestion `yaml:"questions"`
}

// ParseCatalog decodes a questionnaire catalog and checks its shape
func ParseCatalog(data []byte) ([]types.QuestionnaireQuestion, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse questionnaire: %w", err)
	}

	if len(file.Questions) != QuestionnaireLength {
		return nil, fmt.Errorf("questionnaire must have %d questions, found %d", QuestionnaireLength, len(file.Questions))
	}
	for i, q := range file.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return nil, fmt.Errorf("question %d has no text", i+1)
		}
		if len(q.Options) != OptionsPerQuestion {
			return nil, fmt.Errorf("question %d must have %d options, found %d", i+1, OptionsPerQuestion, len(q.Options))
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return nil, fmt.Errorf("question %d option %d is empty", i+1, j+1)
			}
		}
		if q.ID == 0 {
			file.Questions[i].ID = i + 1
		}
	}
	return file.Questions, nil
}

// Catalog holds the questionnaire offered to new sessions. A catalog loaded
// from a file can be reloaded; sessions keep the questions they started with.
type Catalog struct {
	mu        sync.RWMutex
	path      string
	questions []types.QuestionnaireQuestion
}

// LoadCatalog reads the catalog at path, or the built-in one when path is empty
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		questions, err := ParseCatalog(defaultCatalog)
		if err != nil {
			return nil, fmt.Errorf("built-in questionnaire: %w", err)
		}
		return &Catalog{questions: questions}, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve questionnaire path %s: %w", path, err)
	}
	c := &Catalog{path: absPath}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path is the catalog file, empty for the built-in catalog
func (c *Catalog) Path() string {
	return c.path
}

// Questions returns a copy of the current questions
func (c *Catalog) Questions() []types.QuestionnaireQuestion {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.QuestionnaireQuestion, len(c.questions))
	for i, q := range c.questions {
		q.Options = slices.Clone(q.Options)
		out[i] = q
	}
	return out
}

// Reload re-reads the catalog file. On error the previous questions stay in use.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read questionnaire %s: %w", c.path, err)
	}
	questions, err := ParseCatalog(data)
	if err != nil {
		return fmt.Errorf("%s: %w", c.path, err)
	}

	c.mu.Lock()
	c.questions = questions
	c.mu.Unlock()
	return nil
}
