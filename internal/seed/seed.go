// Package seed turns seed strings into reproducible random draws. Every
// stochastic choice in the pipeline (picks, angles, styles, phrasing) is
// keyed by a string built from the day and category so re-runs agree.
package seed

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"sort"
)

// New returns a PCG generator seeded from the SHA-256 digest of key.
func New(key string) *rand.Rand {
	sum := sha256.Sum256([]byte(key))
	return rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])))
}

// Index maps key onto [0, n) using the first 32 bits of its SHA-256 digest.
// n <= 0 yields 0.
func Index(key string, n int) int {
	if n <= 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(key))
	return int(binary.BigEndian.Uint32(sum[:4]) % uint32(n))
}

// Choice picks one element of options using key. It returns the zero value
// for an empty slice.
func Choice[T any](key string, options []T) T {
	var zero T
	if len(options) == 0 {
		return zero
	}
	return options[New(key).IntN(len(options))]
}

// Weighted draws a key from weights in proportion to its weight. Entries
// with non-positive weights are ignored; the draw iterates keys in sorted
// order so map ordering never leaks into the result. ok is false when no
// entry has positive weight.
func Weighted(key string, weights map[string]int) (string, bool) {
	names := make([]string, 0, len(weights))
	total := 0
	for name, w := range weights {
		if w > 0 {
			names = append(names, name)
			total += w
		}
	}
	if total == 0 {
		return "", false
	}
	sort.Strings(names)
	roll := New(key).IntN(total) + 1
	acc := 0
	for _, name := range names {
		acc += weights[name]
		if roll <= acc {
			return name, true
		}
	}
	return names[0], true
}
