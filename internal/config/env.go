package config

import (
	"fmt"
	"os"
	"regexp"
)

var envPattern = regexp.MustCompile(`\{\{\s*env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// SubstituteEnv replaces every `{{ env.NAME }}` occurrence in raw with the
// value of the named environment variable. An unresolved variable is a fatal
// startup error, per the specification's "Environment substitution" section.
func SubstituteEnv(raw []byte) ([]byte, error) {
	var missing []string

	out := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		val, ok := os.LookupEnv(string(name))
		if !ok {
			missing = append(missing, string(name))
			return match
		}
		return []byte(val)
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved environment variables in config: %v", missing)
	}

	return out, nil
}
