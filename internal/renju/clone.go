package renju

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := NewGrid(g.size)
	for i := range g.cells {
		copy(c.cells[i], g.cells[i])
	}
	return c
}

// Clone returns a deep copy of the match. Callers use it to snapshot
// state before a mutation so a failed persist can be rolled back as a
// unit.
func (m *Match) Clone() *Match {
	c := *m
	c.Grid = m.Grid.Clone()

	if m.StartedAt != nil {
		v := *m.StartedAt
		c.StartedAt = &v
	}
	if m.FinishedAt != nil {
		v := *m.FinishedAt
		c.FinishedAt = &v
	}

	c.Seats = make([]*Seat, len(m.Seats))
	for i, s := range m.Seats {
		dup := *s
		if s.Result != nil {
			r := *s.Result
			dup.Result = &r
		}
		c.Seats[i] = &dup
	}

	c.Moves = append([]Move(nil), m.Moves...)
	return &c
}
