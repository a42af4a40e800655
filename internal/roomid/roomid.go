// Package roomid generates room identifiers: a millisecond timestamp
// prefix keeps IDs roughly creation-ordered, a random suffix keeps
// them unguessable.
package roomid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Crockford's base32 alphabet.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of a room ID in characters: 8 encode 40 bits of timestamp,
// 8 encode 40 random bits.
const Length = 16

// New generates a room identifier.
func New() string {
	id := make([]byte, Length)

	// 40 timestamp bits, most significant first.
	ms := uint64(time.Now().UnixMilli()) & (1<<40 - 1)
	for i := 7; i >= 0; i-- {
		id[i] = alphabet[ms&0x1f]
		ms >>= 5
	}

	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("roomid: failed to read entropy: " + err.Error())
	}
	bits := uint64(buf[0])<<32 | uint64(buf[1])<<24 | uint64(buf[2])<<16 |
		uint64(buf[3])<<8 | uint64(buf[4])
	for i := Length - 1; i >= 8; i-- {
		id[i] = alphabet[bits&0x1f]
		bits >>= 5
	}

	return string(id)
}

// Validate checks that an ID has the right shape before it is used as
// a lookup key.
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("room ID must be %d characters, got %d", Length, len(id))
	}
	for i := 0; i < len(id); i++ {
		valid := false
		for j := 0; j < len(alphabet); j++ {
			if id[i] == alphabet[j] {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
	}
	return nil
}
