package lib

import "math/rand/v2"

// NewUID returns a random UIDVALIDITY for a newly created mailbox (never zero)
func NewUID() uint32 {
	for {
		if uid := rand.Uint32(); uid > 0 {
			return uid
		}
	}
}
