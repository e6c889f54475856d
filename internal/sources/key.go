// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sources

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// KeyPrefix starts every allocated key.
const KeyPrefix = "source-"

// NormalizeKey canonicalizes a client supplied key so that lookups do not
// depend on Unicode form, case or surrounding space.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(key)))
}

// keyNumber extracts n from "source-n".
func keyNumber(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// nextKey returns source-(highest+1) over keys. Keys that do not follow
// the pattern are ignored.
func nextKey(keys []string) string {
	highest := 0
	for _, k := range keys {
		if n, ok := keyNumber(k); ok && n > highest {
			highest = n
		}
	}
	return KeyPrefix + strconv.Itoa(highest+1)
}
