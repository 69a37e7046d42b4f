package observability

import (
	"strings"
	"unicode"
)

const maxEventValueRunes = 256

// Event field keys whose values carry customer contact data or credentials.
var maskedEventKeys = map[string]struct{}{
	"contact_phone": {},
	"phone":         {},
	"email":         {},
	"token":         {},
	"id_token":      {},
}

// sanitizeString drops control characters and truncates to limit runes to avoid log injection.
func sanitizeString(value string, limit int) string {
	cleaned := make([]rune, 0, min(len(value), limit))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
		if len(cleaned) == limit {
			break
		}
	}
	return string(cleaned)
}

// SanitizeRoute cleans a route pattern or path for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// sanitizeEventValue prepares a service event field for logging. Strings are cleaned and
// truncated; values under contact or credential keys keep only their last three characters.
func sanitizeEventValue(key string, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if _, masked := maskedEventKeys[strings.ToLower(key)]; masked {
		return maskTail(s, 3)
	}
	return sanitizeString(s, maxEventValueRunes)
}

func maskTail(value string, keep int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= keep {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-keep) + string(runes[len(runes)-keep:])
}
