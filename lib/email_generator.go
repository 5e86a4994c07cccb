package lib

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/emersion/go-imap"
)

const charset = "abcdefghijklmnopqrstuvwxyz " +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 " +
	",./;'\\ \" []{}<>?:|!@£$%^&*()_+-= " +
	"\r\n\r\n\r\n "

const template = "From: %s\r\n" +
	"To: %s\r\n" +
	"Subject: A little message, just for you\r\n" +
	"Date: Wed, 11 May 2016 14:31:59 +0000\r\n" +
	"Message-ID: <%d@localhost/>\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n%s"

var availableFlags = []string{
	imap.SeenFlag,
	imap.AnsweredFlag,
	imap.FlaggedFlag,
	imap.DraftFlag,
	"$Forwarded",
	"$Label1",
}

func stringWithCharset(length int, charset string) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b)
}

// GenerateEmail returns a fake message with a body between minSize and maxSize bytes
func GenerateEmail(from, to string, uid uint32, minSize, maxSize int) []byte {
	length := minSize
	if maxSize > minSize {
		length += rand.IntN(maxSize - minSize)
	}
	msg := fmt.Sprintf(template, from, to, uid, stringWithCharset(length, charset))
	return []byte(msg)
}

// GenerateFlags returns a random list of less than maxFlags flags (without duplicates)
func GenerateFlags(maxFlags int) []string {
	if maxFlags <= 1 {
		return []string{}
	}
	count := rand.IntN(maxFlags)
	if count > len(availableFlags) {
		count = len(availableFlags)
	}
	flags := make([]string, 0, count)
	for _, index := range rand.Perm(len(availableFlags))[:count] {
		flags = append(flags, availableFlags[index])
	}
	return flags
}

// GenerateDateFrom returns a random date between from and now
func GenerateDateFrom(from time.Time) time.Time {
	span := time.Since(from)
	if span <= 1 {
		return from
	}
	return from.Add(time.Duration(rand.Int64N(int64(span-1))) + 1).Truncate(time.Second).Add(time.Second)
}
