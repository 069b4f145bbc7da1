package importer

import "hash/fnv"

// ContentHash computes the stable 64-bit content hash used for payload
// deduplication. The value is persisted in table entries, so the function
// never changes.
func ContentHash(payload []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	v := h.Sum64()
	if v == 0 {
		// Zero is the "not hashed yet" sentinel.
		v = 1
	}
	return v
}
