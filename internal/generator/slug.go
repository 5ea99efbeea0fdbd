package generator

import (
	"crypto/rand"
	"io"
	"math/big"
	"regexp"
)

// SlugLength is the number of characters in a generated slug.
const SlugLength = 7

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var slugPattern = regexp.MustCompile(`^[0-9a-z]{7}$`)

// Func produces a new slug candidate.
type Func func() (string, error)

// NewSlug returns a random 7-character lowercase base-36 slug.
func NewSlug() (string, error) {
	return slugFrom(rand.Reader, SlugLength)
}

func slugFrom(r io.Reader, length int) (string, error) {
	base := big.NewInt(int64(len(alphabet)))

	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(r, base)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}

	return string(b), nil
}

// IsSlug reports whether s has the shape of a generated slug.
func IsSlug(s string) bool {
	return slugPattern.MatchString(s)
}
