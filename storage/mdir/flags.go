package mdir

import (
	"github.com/emersion/go-imap"
	"github.com/emersion/go-maildir"
)

var flagsMapping = []struct {
	imap    string
	maildir maildir.Flag
}{
	{imap.SeenFlag, maildir.FlagSeen},
	{imap.AnsweredFlag, maildir.FlagReplied},
	{imap.FlaggedFlag, maildir.FlagFlagged},
	{imap.DeletedFlag, maildir.FlagTrashed},
	{imap.DraftFlag, maildir.FlagDraft},
}

// toFlags converts IMAP flags. Flags with no maildir equivalent are lost.
func toFlags(source []string) []maildir.Flag {
	flags := make([]maildir.Flag, 0, len(source))
	for _, sourceFlag := range source {
		for _, mapping := range flagsMapping {
			if mapping.imap == sourceFlag {
				flags = append(flags, mapping.maildir)
				break
			}
		}
	}
	return flags
}

func flagsToStrings(source []maildir.Flag) []string {
	flags := make([]string, 0, len(source))
	for _, sourceFlag := range source {
		for _, mapping := range flagsMapping {
			if mapping.maildir == sourceFlag {
				flags = append(flags, mapping.imap)
				break
			}
		}
	}
	return flags
}
