package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type targetsFile struct {
	Targets TargetsConfig `yaml:"targets"`
}

// LoadTargets loads a standalone target list from the given path. When
// present it replaces the inline targets from the main configuration, which
// lets deployments swap symbol sets without touching service tuning.
func LoadTargets(path string) (*TargetsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	var tf targetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}
	if err := tf.Targets.Validate(); err != nil {
		return nil, err
	}
	return &tf.Targets, nil
}
