package cli

import (
	"fmt"
	"os"

	"github.com/aescanero/dago-node-relnotes/internal/helpers"
	"github.com/aescanero/dago-node-relnotes/internal/store"
	"gopkg.in/yaml.v3"
)

// DataFile is the layout of the --data file. JSON files are read as YAML.
type DataFile struct {
	WorkItems             interface{} `yaml:"work_items"`
	Commits               interface{} `yaml:"commits"`
	BuildDetails          interface{} `yaml:"build_details"`
	ReleaseDetails        interface{} `yaml:"release_details"`
	CompareReleaseDetails interface{} `yaml:"compare_release_details"`
	EmptySetText          string      `yaml:"empty_set_text"`
}

func readDataFile(path string) (*DataFile, error) {
	data := &DataFile{}
	if path == "" {
		return data, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	if err := yaml.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	return data, nil
}

// readTemplateFile returns the template lines of a file. A file holding a
// JSON array is read as one line per element.
func readTemplateFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	lines, err := store.DecodeTemplate(string(raw))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return lines, nil
}

func readHelperDefinitions(path string) ([]helpers.Definition, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read helper definitions: %w", err)
	}
	return helpers.ParseDefinitions(raw)
}

func readOptionalFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(raw), nil
}
