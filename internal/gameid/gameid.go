// Package gameid generates and validates session identifiers: UUIDv7
// values rendered as 26-character Crockford base32 strings, so ids sort
// by creation time and stay safe in URLs and filenames.
package gameid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Crockford's base32 alphabet (no i, l, o, u)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// New returns a fresh session id
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("gameid: " + err.Error())
	}
	return encode(id)
}

// Time extracts the creation timestamp embedded in a session id
func Time(s string) (time.Time, error) {
	id, err := decode(s)
	if err != nil {
		return time.Time{}, err
	}
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms).UTC(), nil
}

// Validate checks that a string is a well-formed session id
func Validate(s string) error {
	if len(s) != 26 {
		return fmt.Errorf("session id must be exactly 26 characters, got %d", len(s))
	}
	for i := 0; i < len(s); i++ {
		v := strings.IndexByte(alphabet, s[i])
		if v < 0 {
			return fmt.Errorf("invalid character %q at position %d", s[i], i)
		}
		// The 128 bits pad to 130 with two trailing zero bits, so the
		// last character's low two bits must be clear.
		if i == 25 && v&0x3 != 0 {
			return fmt.Errorf("invalid trailing character %q", s[i])
		}
	}
	return nil
}

// encode renders the 128-bit id as base32, five bits per character with
// two zero bits of trailing padding.
func encode(id uuid.UUID) string {
	var out [26]byte
	for i := 0; i < 26; i++ {
		bit := i * 5
		byteIdx, bitIdx := bit/8, bit%8

		var v byte
		if bitIdx <= 3 {
			v = (id[byteIdx] >> (3 - bitIdx)) & 0x1f
		} else {
			v = (id[byteIdx] << (bitIdx - 3)) & 0x1f
			if byteIdx+1 < 16 {
				v |= id[byteIdx+1] >> (11 - bitIdx)
			}
		}
		out[i] = alphabet[v]
	}
	return string(out[:])
}

// decode is the inverse of encode
func decode(s string) (uuid.UUID, error) {
	var id uuid.UUID
	if err := Validate(s); err != nil {
		return id, err
	}
	for i := 0; i < 26; i++ {
		v := byte(strings.IndexByte(alphabet, s[i]))
		bit := i * 5
		byteIdx, bitIdx := bit/8, bit%8

		if bitIdx <= 3 {
			id[byteIdx] |= v << (3 - bitIdx)
		} else {
			id[byteIdx] |= v >> (bitIdx - 3)
			if byteIdx+1 < 16 {
				id[byteIdx+1] |= v << (11 - bitIdx)
			}
		}
	}
	return id, nil
}
