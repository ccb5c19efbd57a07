package burst

import "github.com/xraph/burst/id"

// ID is the primary identifier type for all Burst entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
