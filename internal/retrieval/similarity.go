// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"encoding/binary"
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type candidate struct {
	rowID  int64
	record Record
}

// rank orders candidates by score descending, ties by insertion order, drops
// those below minScore and keeps at most limit.
func rank(cands []candidate, minScore float64, limit int) []Record {
	kept := cands[:0]
	for _, c := range cands {
		if c.record.Score >= minScore {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].record.Score != kept[j].record.Score {
			return kept[i].record.Score > kept[j].record.Score
		}
		return kept[i].rowID < kept[j].rowID
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}

	out := make([]Record, len(kept))
	for i, c := range kept {
		out[i] = c.record
	}
	return out
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
