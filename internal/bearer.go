package internal

import "strings"

const bearerScheme = "bearer "

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	if len(value) < len(bearerScheme) || !strings.EqualFold(value[:len(bearerScheme)], bearerScheme) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearerScheme):])
	if token == "" {
		return "", false
	}
	return token, true
}

// StripBearer returns value without a leading bearer scheme. Values without
// the scheme are returned trimmed.
func StripBearer(value string) string {
	value = strings.TrimSpace(value)
	if token, ok := BearerToken(value); ok {
		return token
	}
	return value
}
