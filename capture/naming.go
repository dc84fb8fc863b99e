package capture

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout renders as yyyyMMdd_HHmmss.
const timestampLayout = "20060102_150405"

var selectorReplacer = strings.NewReplacer(
	".", "",
	"#", "",
	" ", "_",
	"/", "_",
	`\`, "_",
)

// SanitizeSelector turns a CSS selector into a file-name fragment: dots and
// hashes are dropped, spaces and path separators become underscores.
func SanitizeSelector(selector string) string {
	return selectorReplacer.Replace(selector)
}

// FileName builds {sanitized-selector}_{index}_{yyyyMMdd_HHmmss}.png.
// index is 1-based. Two captures of the same selector and index within the
// same second produce the same name.
func FileName(selector string, index int, ts time.Time) string {
	return fmt.Sprintf("%s_%d_%s.png", SanitizeSelector(selector), index, ts.Format(timestampLayout))
}
