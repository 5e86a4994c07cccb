package lib

import (
	"net/url"
	"strings"
)

func VerifyDelimiter(name, existingDelimiter, expectedDelimiter string) string {
	if existingDelimiter == expectedDelimiter || existingDelimiter == "" || expectedDelimiter == "" {
		return name
	}
	name = strings.ReplaceAll(name, expectedDelimiter, "\\"+expectedDelimiter)
	// TODO: verify we're not replacing \existingDelimiter (escaped delimiter)
	name = strings.ReplaceAll(name, existingDelimiter, expectedDelimiter)
	return name
}

// EscapeFilename turns a mailbox name into a single path element
func EscapeFilename(name string) string {
	escaped := url.PathEscape(name)
	// PathEscape leaves these alone but they're not welcome in a file name
	escaped = strings.ReplaceAll(escaped, ":", "%3A")
	escaped = strings.ReplaceAll(escaped, "\\", "%5C")
	if strings.HasPrefix(escaped, ".") {
		escaped = "%2E" + escaped[1:]
	}
	return escaped
}
