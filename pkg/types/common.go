package types

import (
	"github.com/oklog/ulid/v2"
)

// ID Generation Helpers

func GenerateID(prefix string) string {
	return prefix + "_" + ulid.Make().String()
}

func GenerateRequestID() string { return GenerateID("req") }
func GenerateHandleID() string  { return GenerateID("ntf") }
