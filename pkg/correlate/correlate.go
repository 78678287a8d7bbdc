// Package correlate matches the two channels' entity sets by identity key
// and derives a consistency score per kind.
package correlate

import (
	"reflect"
	"sort"

	"github.com/AshishGautamKarn/sn-introspect/pkg/entity"
)

// Options tunes matching. The default matches by identity key only, so
// cosmetic attribute drift (timestamp precision, casing of labels) cannot
// produce false "only in one source" results.
type Options struct {
	// MatchAttributes additionally requires equal attribute values on the
	// fields both sides carry for a key to count as matched.
	MatchAttributes bool
}

// Result describes agreement and drift between the two channels for one
// entity kind.
type Result struct {
	Kind    entity.Kind
	Matched []string
	APIOnly []string
	DBOnly  []string
	Score   float64
}

// Correlate classifies keys present in both sources, API only, and DB
// only. Score is |matched| / (|matched| + |dbOnly| + |apiOnly|), defined
// as 1.0 when the denominator is zero: two empty sets vacuously agree.
func Correlate(apiResult, dbResult *entity.ExtractionResult, opts Options) Result {
	apiByKey := indexByKey(apiResult)
	dbByKey := indexByKey(dbResult)

	result := Result{Kind: apiResult.Kind}

	for key, apiEntity := range apiByKey {
		dbEntity, inBoth := dbByKey[key]
		if !inBoth {
			result.APIOnly = append(result.APIOnly, key)
			continue
		}
		if opts.MatchAttributes && !attributesAgree(apiEntity, dbEntity) {
			result.APIOnly = append(result.APIOnly, key)
			result.DBOnly = append(result.DBOnly, key)
			continue
		}
		result.Matched = append(result.Matched, key)
	}
	for key := range dbByKey {
		if _, inBoth := apiByKey[key]; !inBoth {
			result.DBOnly = append(result.DBOnly, key)
		}
	}

	sort.Strings(result.Matched)
	sort.Strings(result.APIOnly)
	sort.Strings(result.DBOnly)

	denominator := len(result.Matched) + len(result.APIOnly) + len(result.DBOnly)
	if denominator == 0 {
		result.Score = 1.0
	} else {
		result.Score = float64(len(result.Matched)) / float64(denominator)
	}

	return result
}

func indexByKey(r *entity.ExtractionResult) map[string]entity.Entity {
	index := make(map[string]entity.Entity, len(r.Entities))
	for _, e := range r.Entities {
		index[e.Key] = e
	}
	return index
}

// attributesAgree compares values for the attribute names both entities
// carry. Attributes present on only one side do not break agreement; the
// sources legitimately expose different field sets.
func attributesAgree(a, b entity.Entity) bool {
	for el := a.Attributes.Front(); el != nil; el = el.Next() {
		bv, ok := b.Attributes.Get(el.Key)
		if !ok {
			continue
		}
		if entity.IsAbsent(el.Value) || entity.IsAbsent(bv) {
			continue
		}
		if !reflect.DeepEqual(el.Value, bv) {
			return false
		}
	}
	return true
}
