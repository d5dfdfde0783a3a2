package store

import (
	"fmt"
	"sort"

	"RucFilter/internal/domain"
	"RucFilter/internal/ports"
)

func cellRange(row int, from, to domain.Column) string {
	return fmt.Sprintf("%s%d:%s%d", from.Letter(), row, to.Letter(), row)
}

func blockRange(fromRow, toRow int, to domain.Column) string {
	return fmt.Sprintf("A%d:%s%d", fromRow, to.Letter(), toRow)
}

// rowRanges splits one update into contiguous column runs, one range each.
func rowRanges(u domain.Update) []ports.ValueRange {
	cols := make([]domain.Column, 0, len(u.Values))
	for c := range u.Values {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })

	var out []ports.ValueRange
	for start := 0; start < len(cols); {
		end := start
		for end+1 < len(cols) && cols[end+1] == cols[end]+1 {
			end++
		}
		values := make([]string, 0, end-start+1)
		for _, c := range cols[start : end+1] {
			values = append(values, u.Values[c])
		}
		out = append(out, ports.ValueRange{
			Range:  cellRange(u.Row, cols[start], cols[end]),
			Values: [][]string{values},
		})
		start = end + 1
	}
	return out
}
