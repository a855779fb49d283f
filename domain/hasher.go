package domain

// Hasher fingerprints values that should not be logged verbatim, such as a
// session's system instruction.
type Hasher interface {
	Hash(data []byte) string
}
