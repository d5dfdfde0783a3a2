package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"RucFilter/internal/ports"
)

// memSheet is an in-memory Sheet that understands simple A1 ranges.
type memSheet struct {
	mu      sync.Mutex
	grid    [][]string
	updates [][]ports.ValueRange
	clears  []string
	failN   int
	failIf  func([]ports.ValueRange) bool
}

func newMemSheet(rows ...[]string) *memSheet {
	grid := make([][]string, len(rows))
	for i, r := range rows {
		grid[i] = append([]string(nil), r...)
	}
	return &memSheet{grid: grid}
}

func (m *memSheet) Values(_ context.Context, a1 string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a1 == "" {
		return m.snapshot(0, len(m.grid), 0, 1<<20), nil
	}
	c1, r1, c2, r2 := parseRange(a1)
	if r2 < 0 {
		r2 = len(m.grid)
	}
	return m.snapshot(r1-1, r2, c1, c2+1), nil
}

func (m *memSheet) BatchUpdate(_ context.Context, ranges []ports.ValueRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failN > 0 {
		m.failN--
		return errors.New("quota exceeded")
	}
	if m.failIf != nil && m.failIf(ranges) {
		return errors.New("rejected")
	}

	m.updates = append(m.updates, ranges)
	for _, vr := range ranges {
		c1, r1, _, _ := parseRange(vr.Range)
		for i, row := range vr.Values {
			for j, v := range row {
				m.set(r1+i, c1+j, v)
			}
		}
	}
	return nil
}

func (m *memSheet) BatchClear(_ context.Context, ranges []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a1 := range ranges {
		m.clears = append(m.clears, a1)
		c1, r1, c2, r2 := parseRange(a1)
		for r := r1; r <= r2 && r <= len(m.grid); r++ {
			for c := c1; c <= c2 && c < len(m.grid[r-1]); c++ {
				m.grid[r-1][c] = ""
			}
		}
	}
	m.trim()
	return nil
}

func (m *memSheet) cell(row, col int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row-1 < len(m.grid) && col < len(m.grid[row-1]) {
		return m.grid[row-1][col]
	}
	return ""
}

func (m *memSheet) rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.grid)
}

func (m *memSheet) set(row, col int, v string) {
	for len(m.grid) < row {
		m.grid = append(m.grid, nil)
	}
	for len(m.grid[row-1]) <= col {
		m.grid[row-1] = append(m.grid[row-1], "")
	}
	m.grid[row-1][col] = v
}

// trim drops trailing empty rows, as the remote API omits them.
func (m *memSheet) trim() {
	for len(m.grid) > 0 && strings.Join(m.grid[len(m.grid)-1], "") == "" {
		m.grid = m.grid[:len(m.grid)-1]
	}
}

func (m *memSheet) snapshot(r1, r2, c1, c2 int) [][]string {
	var out [][]string
	for r := r1; r < r2 && r < len(m.grid); r++ {
		row := m.grid[r]
		var cells []string
		for c := c1; c < c2 && c < len(row); c++ {
			cells = append(cells, row[c])
		}
		out = append(out, cells)
	}
	return out
}

// parseRange handles "B2:D5", "A1:A1" and open-ended "A2:A".
func parseRange(a1 string) (c1, r1, c2, r2 int) {
	parts := strings.SplitN(a1, ":", 2)
	c1, r1 = parseCell(parts[0])
	c2, r2 = c1, r1
	if len(parts) == 2 {
		c2, r2 = parseCell(parts[1])
	}
	return c1, r1, c2, r2
}

func parseCell(ref string) (col, row int) {
	i := 0
	col = 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	row = -1
	if i < len(ref) {
		row, _ = strconv.Atoi(ref[i:])
	}
	return col - 1, row
}
