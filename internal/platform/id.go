package platform

import (
	"strings"

	"github.com/google/uuid"
)

// NoOpOperationIDPrefix marks synthesized operation ids for deployment
// attempts that never reached the provider (e.g. a same-target operation
// conflict recorded as a terminal failure).
const NoOpOperationIDPrefix = "no-op-"

func NewID() string {
	return uuid.New().String()
}

// NoOpOperationID returns a placeholder operation id for an attempt that was
// recorded without a provider-side operation ever starting. The id is derived
// deterministically from the seed parts so that a re-delivered invocation
// lands on the same history row instead of creating a second one.
func NoOpOperationID(parts ...string) string {
	return NoOpOperationIDPrefix + uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, "#"))).String()
}
