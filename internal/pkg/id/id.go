package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. Used as the jti of recovery tokens, so
// token ids sort by issue time in logs.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
