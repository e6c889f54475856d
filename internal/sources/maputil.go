// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sources

import (
	"cmp"
	"slices"
)

func cloneMap(m map[string]Source) map[string]Source {
	out := make(map[string]Source, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

func findURL(m map[string]Source, sourceURL string) (Source, bool) {
	for _, src := range m {
		if src.SourceURL == sourceURL {
			return src, true
		}
	}
	return Source{}, false
}

// sortedSources orders by key number, then key.
func sortedSources(m map[string]Source) []Source {
	out := make([]Source, 0, len(m))
	for _, src := range m {
		out = append(out, src.clone())
	}
	slices.SortFunc(out, compareKeys)
	return out
}

func compareKeys(a, b Source) int {
	an, aok := keyNumber(a.Key)
	bn, bok := keyNumber(b.Key)
	switch {
	case aok && bok && an != bn:
		return cmp.Compare(an, bn)
	case aok != bok:
		// Allocated keys first.
		if aok {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Key, b.Key)
}
