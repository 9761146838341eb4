package sourceb

import (
	"github.com/ginjaninja78/filingsync/internal/normalize"
	"github.com/ginjaninja78/filingsync/internal/types"
)

// Lookup maps match keys to source B records. Primary keys and their
// zero-stripped aliases share one first-seen map, so a key never resolves
// to more than one record and a later row never takes over a key an earlier
// row already claimed, whether as its own key or as an alias.
type Lookup struct {
	keys    map[string]*types.SourceBRecord
	indexed int

	// duplicates lists primary keys that were already claimed when their
	// row was reached, in the order the second claim was seen.
	duplicates []string

	// stripped indexes every claimed key by its zero-stripped form, for
	// fallback matching of source A keys that carry leading zeros.
	stripped map[string]*types.SourceBRecord
}

// NewLookup indexes records in order. Records without a key are skipped,
// as are records whose key is already claimed.
func NewLookup(records []types.SourceBRecord) *Lookup {
	l := &Lookup{
		keys:     make(map[string]*types.SourceBRecord, len(records)),
		stripped: make(map[string]*types.SourceBRecord, len(records)),
	}
	seenDup := make(map[string]bool)
	for i := range records {
		rec := &records[i]
		key := rec.MatchKey
		if key == "" {
			continue
		}
		if _, ok := l.keys[key]; ok {
			if !seenDup[key] {
				seenDup[key] = true
				l.duplicates = append(l.duplicates, key)
			}
			continue
		}
		l.keys[key] = rec
		l.indexed++

		s := normalize.StripLeadingZeros(key)
		if s != "" && s != key {
			if _, ok := l.keys[s]; !ok {
				l.keys[s] = rec
			}
		}
		if _, ok := l.stripped[s]; !ok {
			l.stripped[s] = rec
		}
	}
	return l
}

// Get returns the record that first claimed a key.
func (l *Lookup) Get(key string) (*types.SourceBRecord, bool) {
	if key == "" {
		return nil, false
	}
	rec, ok := l.keys[key]
	return rec, ok
}

// Fallback finds a record whose key equals the given key once leading zeros
// are stripped from both. It only applies to keys that have leading zeros.
//
// RETURNS:
//   - The record and the key it was found under.
//   - false when the key has no leading zeros or nothing matches.
func (l *Lookup) Fallback(key string) (*types.SourceBRecord, string, bool) {
	if !normalize.HasLeadingZeros(key) {
		return nil, "", false
	}
	rec, ok := l.stripped[normalize.StripLeadingZeros(key)]
	if !ok {
		return nil, "", false
	}
	return rec, rec.MatchKey, true
}

// Len returns the number of records reachable through the lookup.
func (l *Lookup) Len() int {
	return l.indexed
}

// Duplicates returns the match keys whose later rows were left out because
// the key was already claimed.
func (l *Lookup) Duplicates() []string {
	return l.duplicates
}
