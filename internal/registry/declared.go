package registry

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Declared holds the recognized fields of a process section. A nil field
// was not present in the source and leaves the record untouched.
type Declared struct {
	Command *string
	Enabled *bool
}

// ParseDeclared converts raw section keys into typed fields. Unknown keys
// are ignored.
func ParseDeclared(keys map[string]any) (Declared, error) {
	var d Declared
	if v, ok := keys["command"]; ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return d, fmt.Errorf("command: %w", err)
		}
		d.Command = &s
	}
	if v, ok := keys["enabled"]; ok {
		b, err := parseBool(v)
		if err != nil {
			return d, err
		}
		d.Enabled = &b
	}
	return d, nil
}

func parseBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		if t == 0 || t == 1 {
			return t == 1, nil
		}
	case int:
		if t == 0 || t == 1 {
			return t == 1, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("enabled: cannot parse %v as boolean", v)
}
