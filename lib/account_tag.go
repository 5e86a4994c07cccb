package lib

import (
	"crypto/sha256"
	"encoding/hex"
)

// AccountTag identifies an account on a server. It's used to name the directory holding
// the progress files of that account, so it must never change for the same input.
func AccountTag(serverURL, username string) string {
	hasher := sha256.New()
	hasher.Write([]byte(username))
	hasher.Write([]byte(":"))
	hasher.Write([]byte(serverURL))
	hasher.Write([]byte("\n"))
	return hex.EncodeToString(hasher.Sum(nil))
}
