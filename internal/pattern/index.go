// Package pattern compiles declarative filename rules into executable
// matchers and builds the session lookup index used for fast fuzzy
// candidate filtering.
package pattern

// SessionLookupIndex maps normalized session tokens to canonical titles,
// with a two-level bucket index (first character, then length) that narrows
// fuzzy-match candidates without scanning every key.
//
// Bucketing is a pure optimization: any key that could pass the
// fuzzy-closeness predicate against a token (same first character, length
// within one) is guaranteed to appear in GetCandidates for that token.
type SessionLookupIndex struct {
	mapping map[string]string
	buckets map[byte]map[int][]string
}

// NewSessionLookupIndex returns an empty index.
func NewSessionLookupIndex() *SessionLookupIndex {
	return &SessionLookupIndex{
		mapping: make(map[string]string),
		buckets: make(map[byte]map[int][]string),
	}
}

// Add stores key -> canonical in the direct mapping and buckets the key for
// candidate filtering. Empty keys are only stored in the mapping.
func (idx *SessionLookupIndex) Add(key, canonical string) {
	idx.mapping[key] = canonical
	if key == "" {
		return
	}
	first := key[0]
	lengths, ok := idx.buckets[first]
	if !ok {
		lengths = make(map[int][]string)
		idx.buckets[first] = lengths
	}
	lengths[len(key)] = append(lengths[len(key)], key)
}

// GetDirect returns the canonical value for an exact key, or "".
func (idx *SessionLookupIndex) GetDirect(token string) string {
	return idx.mapping[token]
}

// GetCandidates returns the keys sharing the token's first character whose
// length is within one of the token's, the only keys the fuzzy predicate
// could accept.
func (idx *SessionLookupIndex) GetCandidates(token string) []string {
	if token == "" {
		return nil
	}
	lengths, ok := idx.buckets[token[0]]
	if !ok {
		return nil
	}
	var candidates []string
	for _, target := range []int{len(token) - 1, len(token), len(token) + 1} {
		candidates = append(candidates, lengths[target]...)
	}
	return candidates
}

// Keys returns every key in the index, in arbitrary order.
func (idx *SessionLookupIndex) Keys() []string {
	keys := make([]string, 0, len(idx.mapping))
	for key := range idx.mapping {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of stored keys.
func (idx *SessionLookupIndex) Len() int {
	return len(idx.mapping)
}
