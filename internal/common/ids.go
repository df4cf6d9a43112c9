package common

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a 26 character, time-sortable id.
func NewULID() (string, error) {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
