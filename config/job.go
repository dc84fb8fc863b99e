package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/use-agent/elemshot/models"
	"gopkg.in/yaml.v3"
)

// ErrJobNotFound is returned when a job file does not exist.
var ErrJobNotFound = errors.New("job file not found")

// LoadJobFile reads a capture job from a YAML file:
//
//	url: https://example.com
//	selectors: [".card", "#hero"]   # or a single string
//	output_dir: shots
func LoadJobFile(path string) (*models.CaptureRequest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided job path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var req models.CaptureRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse job file %s: %w", path, err)
	}
	return &req, nil
}
