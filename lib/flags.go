package lib

import "github.com/emersion/go-imap"

// StripRecentFlag removes the \Recent flag: it's set by the server and cannot be appended
func StripRecentFlag(source []string) []string {
	output := make([]string, 0, len(source))
	for _, flag := range source {
		if flag == imap.RecentFlag {
			continue
		}
		output = append(output, flag)
	}
	return output
}

// HasFlag returns true if flag is in the list
func HasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
