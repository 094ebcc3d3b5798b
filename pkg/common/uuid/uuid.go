package uuid

import (
	"github.com/gofrs/uuid/v5"
)

type UUID = uuid.UUID

func NewV4() UUID {
	return uuid.Must(uuid.NewV4())
}

func NewNil() UUID {
	return uuid.Nil
}

func FromString(s string) (UUID, error) {
	return uuid.FromString(s)
}

func IsNil(u UUID) bool {
	return u == uuid.Nil
}
