package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultOutputDir is used when a request names no output directory.
const DefaultOutputDir = "screenshots"

// SelectorList is an ordered list of CSS selectors. On the wire it accepts
// either a single string or an array of strings; a single string decodes
// to a one-element list.
type SelectorList []string

// UnmarshalJSON accepts `".card"` as well as `[".card", "#hero"]`.
func (s *SelectorList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = SelectorList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("selectors must be a string or an array of strings: %w", err)
	}
	*s = many
	return nil
}

// UnmarshalYAML accepts a scalar or a sequence node.
func (s *SelectorList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = SelectorList{node.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return errors.New("selectors must be a string or a list of strings")
	}
}

// CaptureRequest is the payload for POST /api/v1/capture and the shape of
// a YAML job file.
type CaptureRequest struct {
	// URL is the page to load. Required.
	URL string `json:"url" yaml:"url" binding:"required,url"`

	// Selectors are processed in order; each match becomes one file.
	Selectors SelectorList `json:"selectors" yaml:"selectors" binding:"required,min=1"`

	// OutputDir is where PNG files are written. Default: "screenshots".
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`

	// RemoveOverlays deletes fixed/sticky banners before enumeration.
	RemoveOverlays bool `json:"remove_overlays,omitempty" yaml:"remove_overlays,omitempty"`

	// BlockAds aborts ad-slot and consent-frame requests that resize the page after load.
	BlockAds bool `json:"block_ads,omitempty" yaml:"block_ads,omitempty"`

	// Stealth masks navigator.webdriver and friends before navigation.
	Stealth bool `json:"stealth,omitempty" yaml:"stealth,omitempty"`

	// WebhookURL receives a capture.completed / capture.failed event (API only).
	WebhookURL string `json:"webhook_url,omitempty" yaml:"-" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty" yaml:"-"`
}

// Defaults applies default values to unset fields.
func (r *CaptureRequest) Defaults() {
	if r.OutputDir == "" {
		r.OutputDir = DefaultOutputDir
	}
}

// Validate reports input problems that make the whole request unusable.
// Individual selectors are validated later, per selector.
func (r *CaptureRequest) Validate() error {
	if r.URL == "" {
		return NewCaptureError(ErrCodeInvalidInput, "url is required", nil)
	}
	if len(r.Selectors) == 0 {
		return NewCaptureError(ErrCodeInvalidInput, "at least one selector is required", nil)
	}
	return nil
}
