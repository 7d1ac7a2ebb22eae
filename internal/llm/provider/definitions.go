package provider

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelDefinitions models the structure of configs/models.yaml.
type ModelDefinitions struct {
	Models map[string]ModelDefinition `yaml:"models"`
}

// ModelDefinition describes a single named model profile.
type ModelDefinition struct {
	Provider    string         `yaml:"provider"`
	Model       string         `yaml:"model"`
	Params      map[string]any `yaml:"params"`
	Description string         `yaml:"description"`
}

// LoadModelDefinitions parses the YAML file containing model profiles.
func LoadModelDefinitions(path string) (ModelDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ModelDefinitions{Models: map[string]ModelDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ModelDefinitions{}, fmt.Errorf("读取模型配置失败: %w", err)
	}

	var defs ModelDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ModelDefinitions{}, fmt.Errorf("解析模型配置失败: %w", err)
	}
	if defs.Models == nil {
		defs.Models = map[string]ModelDefinition{}
	}
	return defs, nil
}
