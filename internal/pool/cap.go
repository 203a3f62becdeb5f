// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pool computes which researcher pairs are eligible for proposal
// generation. It caps each user's candidate pool with a seeded, reproducible
// sample of bulk selections and turns the capped selections, user settings
// and prior matching results into eligible pairs with visibility states.
package pool

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/pdiddy/research-match/pkg/types"
)

// SeededSample returns min(n, len(items)) items chosen deterministically from
// seed. Each item is ranked by SHA-256(seed, key(item)) and the n lowest
// ranks are kept, so the result depends only on the seed and the set of keys,
// never on input order. Items sharing a key keep their relative input order.
// The input slice is not modified.
func SeededSample[T any](items []T, n int, seed string, key func(T) string) []T {
	if n <= 0 || len(items) == 0 {
		return []T{}
	}
	if n >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}

	type ranked struct {
		item T
		rank [sha256.Size]byte
		idx  int
	}

	rs := make([]ranked, len(items))
	for i, it := range items {
		rs[i] = ranked{item: it, rank: sampleRank(seed, key(it)), idx: i}
	}

	sort.SliceStable(rs, func(i, j int) bool {
		if c := bytes.Compare(rs[i].rank[:], rs[j].rank[:]); c != 0 {
			return c < 0
		}
		return rs[i].idx < rs[j].idx
	})

	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = rs[i].item
	}
	return out
}

// sampleRank hashes seed and key with a NUL separator.
func sampleRank(seed, key string) [sha256.Size]byte {
	return sha256.Sum256([]byte(seed + "\x00" + key))
}

// entryKey identifies a pool entry for sampling.
func entryKey(e types.PoolEntry) string {
	return e.SelectorID + "\x00" + e.TargetID
}

// CapEntriesForUser limits one user's pool entries to capSize. Individually
// selected entries are always kept, even beyond capSize. The remaining budget
// is filled with a seeded sample of bulk entries (affiliation and all-users
// selections). The result holds the individual entries in input order
// followed by the sampled bulk entries.
func CapEntriesForUser(entries []types.PoolEntry, capSize int, seed string) []types.PoolEntry {
	var individual, bulk []types.PoolEntry
	for _, e := range entries {
		if e.Source.IsBulk() {
			bulk = append(bulk, e)
			continue
		}
		individual = append(individual, e)
	}

	remaining := capSize - len(individual)
	if remaining < 0 {
		remaining = 0
	}

	out := make([]types.PoolEntry, 0, len(individual)+min(remaining, len(bulk)))
	out = append(out, individual...)
	out = append(out, SeededSample(bulk, remaining, seed, entryKey)...)
	return out
}

// CapPool applies CapEntriesForUser to every selector in entries. When
// disableCap is set all entries are returned unfiltered. Selectors are
// processed in sorted order so the output is stable.
func CapPool(entries []types.PoolEntry, capSize int, seed string, disableCap bool) []types.PoolEntry {
	if disableCap {
		out := make([]types.PoolEntry, len(entries))
		copy(out, entries)
		return out
	}

	bySelector := make(map[string][]types.PoolEntry)
	for _, e := range entries {
		bySelector[e.SelectorID] = append(bySelector[e.SelectorID], e)
	}

	selectors := make([]string, 0, len(bySelector))
	for id := range bySelector {
		selectors = append(selectors, id)
	}
	sort.Strings(selectors)

	var out []types.PoolEntry
	for _, id := range selectors {
		out = append(out, CapEntriesForUser(bySelector[id], capSize, seed)...)
	}
	return out
}

// CycleSeed returns the ISO-week seed for t (e.g. "2026-W42"). Using it as the
// sampling seed rotates bulk candidates once per weekly matching cycle.
func CycleSeed(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
