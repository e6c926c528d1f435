// Package assistantdef loads assistant definitions from markdown files. The
// YAML frontmatter carries the configuration; the body is the system
// instructions verbatim.
package assistantdef

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KeioAIConsortium/gpt-discord-bot/internal/assistant"
)

// Definition is one assistant described on disk.
type Definition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Model       string   `yaml:"model"`
	Tools       []string `yaml:"tools,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`

	// Instructions is the markdown body below the frontmatter.
	Instructions string `yaml:"-"`
}

// Parse decodes one definition document. The file must start with a "---"
// frontmatter block naming at least name and model.
func Parse(contents string) (Definition, error) {
	raw, body, ok := splitFrontmatter(contents)
	if !ok {
		return Definition{}, fmt.Errorf("missing frontmatter block")
	}
	var def Definition
	if err := yaml.Unmarshal([]byte(raw), &def); err != nil {
		return Definition{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	def.Instructions = strings.TrimSpace(body)
	if err := def.validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// LoadFile reads and parses a single definition file.
func LoadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read definition: %w", err)
	}
	def, err := Parse(string(data))
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// LoadDir parses every .md file directly under dir, sorted by filename.
// Subdirectories are not walked.
func LoadDir(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definition dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		def, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// CreateParams maps the definition onto the remote create/update payload.
func (d Definition) CreateParams() assistant.AssistantCreate {
	tools := make([]assistant.Tool, 0, len(d.Tools))
	for _, t := range d.Tools {
		tools = append(tools, assistant.Tool{Type: assistant.ToolType(t)})
	}
	return assistant.AssistantCreate{
		Name:         d.Name,
		Description:  d.Description,
		Model:        d.Model,
		Instructions: d.Instructions,
		Tools:        tools,
		Temperature:  d.Temperature,
	}
}

func (d Definition) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("definition has no name")
	}
	if strings.TrimSpace(d.Model) == "" {
		return fmt.Errorf("definition %q has no model", d.Name)
	}
	for _, t := range d.Tools {
		switch assistant.ToolType(t) {
		case assistant.ToolFileSearch, assistant.ToolCodeInterpreter:
		default:
			return fmt.Errorf("definition %q has unknown tool %q", d.Name, t)
		}
	}
	if d.Temperature != nil && (*d.Temperature < 0 || *d.Temperature > 2) {
		return fmt.Errorf("definition %q temperature %v out of range", d.Name, *d.Temperature)
	}
	return nil
}

// splitFrontmatter splits a document into the raw YAML between a leading
// "---" line and the next "---" line, and the remaining body.
func splitFrontmatter(contents string) (string, string, bool) {
	lines := strings.Split(strings.ReplaceAll(contents, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", contents, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "---" {
			continue
		}
		return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
	}
	return "", contents, false
}
