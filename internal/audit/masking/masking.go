package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"api_key":  {},
	"apikey":   {},
	"secret":   {},
	"password": {},
	"token":    {},
}

// MaskSecret keeps the last four characters of longer values.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// IsSensitiveKey reports whether a settings key carries a credential.
func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskSettings returns a copy of settings with credential values masked.
// Nested maps are walked; other values are copied through.
func MaskSettings(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		switch cast := value.(type) {
		case map[string]any:
			masked[trimmedKey] = MaskSettings(cast)
		case string:
			if IsSensitiveKey(trimmedKey) {
				masked[trimmedKey] = MaskSecret(cast)
			} else {
				masked[trimmedKey] = cast
			}
		default:
			masked[trimmedKey] = value
		}
	}
	return masked
}
