package capture

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/elemshot/models"
)

// ValidateSelector rejects selectors that cannot be sent to the browser at
// all. Anything else is left to the browser, whose selector grammar is the
// one that decides what matches.
func ValidateSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return models.NewCaptureError(models.ErrCodeInvalidSelector, "selector is empty", nil)
	}
	return nil
}

// parseLocally reports whether cascadia understands selector. Browsers
// accept more (:is, :where, :has with combinators, :scope, "of S" in
// :nth-child), so a failure here is only a hint for the debug log.
func parseLocally(selector string) error {
	_, err := cascadia.ParseGroup(selector)
	return err
}
