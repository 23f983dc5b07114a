// Package processdata checks bit-packed process-data layouts and decodes raw
// process-data payloads against them.
package processdata

import (
	"fmt"
	"sort"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

// CheckLayout reports, without rejecting, layouts whose item lengths do not
// add up to the declared total, that overlap, or that reach past the end.
// Vendor files are not always consistent, so the block is kept verbatim.
func CheckLayout(b *types.ProcessDataBlock, path string, report *types.Report) {
	var sum uint64
	for _, it := range b.Items {
		sum += uint64(it.BitLength)
		if it.End() > uint64(b.TotalBitLength) {
			report.AddWarning(types.Issue{
				Code:    types.CodeItemOutOfRange,
				Message: fmt.Sprintf("Item %d (%s) ends at bit %d beyond block length %d", it.Subindex, it.Name, it.End(), b.TotalBitLength),
				Path:    path,
				Meta:    map[string]any{"subindex": it.Subindex},
			})
		}
	}
	if sum != uint64(b.TotalBitLength) {
		report.AddWarning(types.Issue{
			Code:    types.CodeBitLengthMismatch,
			Message: fmt.Sprintf("Item bit lengths sum to %d, block declares %d", sum, b.TotalBitLength),
			Path:    path,
			Meta:    map[string]any{"sum": sum, "declared": b.TotalBitLength},
		})
	}

	for _, pair := range Overlaps(b.Items) {
		report.AddWarning(types.Issue{
			Code:    types.CodeOverlappingItems,
			Message: fmt.Sprintf("Items %d and %d overlap at bit %d", pair[0].Subindex, pair[1].Subindex, pair[1].BitOffset),
			Path:    path,
			Meta:    map[string]any{"subindex_a": pair[0].Subindex, "subindex_b": pair[1].Subindex},
		})
	}
}

// Overlaps returns neighbouring item pairs, ordered by offset, whose bit
// ranges intersect. Zero-length items never overlap.
func Overlaps(items []types.RecordItem) [][2]types.RecordItem {
	sorted := make([]types.RecordItem, 0, len(items))
	for _, it := range items {
		if it.BitLength > 0 {
			sorted = append(sorted, it)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BitOffset < sorted[j].BitOffset })

	var out [][2]types.RecordItem
	var furthest types.RecordItem
	for i, cur := range sorted {
		if i > 0 && uint64(cur.BitOffset) < furthest.End() {
			out = append(out, [2]types.RecordItem{furthest, cur})
		}
		if i == 0 || cur.End() > furthest.End() {
			furthest = cur
		}
	}
	return out
}
