package engine

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/health"
)

// costSnapshot is a memoized estimate. tokens is trusted only while the
// fingerprint of the current cost inputs matches; on mismatch the whole
// snapshot is discarded and recomputed.
type costSnapshot struct {
	tokens      int
	fingerprint [32]byte
}

// costFingerprint folds every input that affects the token estimate into
// one BLAKE3 digest: each category's enabled bit in registry order, the
// sorted selected-id set, and the extracted-text length of every selected
// document whose category is enabled. Text lengths stand in for content
// to keep the fold cheap. Any new cost-affecting field must be added here.
func costFingerprint(sel *Selection, docs map[string]health.Document) [32]byte {
	h := blake3.New()

	for _, c := range category.All() {
		h.Write([]byte(c))
		if sel.CategoryEnabled(c) {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	for _, id := range sel.SelectedIDs() {
		h.Write([]byte(id))
		h.Write([]byte{0})

		d, ok := docs[id]
		if !ok {
			continue
		}
		owner, ok := category.Owner(d.Kind)
		if !ok || !sel.CategoryEnabled(owner) {
			continue
		}
		writeUint64(h, uint64(d.ExtractedChars))
	}

	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

// writeUint64 writes a little-endian uint64 into the hash.
func writeUint64(h *blake3.Hasher, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// computeTokens does the full from-scratch estimate over the current
// selection: the PersonalInfo base when enabled, per-result panel costs
// for selected panels in an enabled category, and text-length document
// costs for selected documents in enabled categories. Items that are
// selected but unknown, or whose category is disabled, contribute nothing.
func computeTokens(sel *Selection, docs map[string]health.Document, panels map[string]health.Panel) int {
	total := 0

	if sel.CategoryEnabled(category.PersonalInfo) {
		total += category.Get(category.PersonalInfo).BaseTokens
	}

	for id := range sel.selected {
		if p, ok := panels[id]; ok {
			if sel.CategoryEnabled(category.LabPanels) {
				total += health.PanelTokens(&p)
			}
			continue
		}
		if d, ok := docs[id]; ok {
			owner, ok := category.Owner(d.Kind)
			if ok && sel.CategoryEnabled(owner) {
				total += health.DocumentTokens(&d)
			}
		}
	}

	return total
}
