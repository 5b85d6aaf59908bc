package catalog

// Direction is a single navigation step.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Advance moves cursor one step in dir, wrapping modulo n.
// With an empty catalog the cursor is returned unchanged.
func Advance(cursor, n int, dir Direction) int {
	if n <= 0 {
		return cursor
	}
	return ((cursor+int(dir))%n + n) % n
}

// ClampAfterRemove returns the cursor to use once the entry under it has been
// removed and n entries remain. The cursor keeps pointing at the entry that
// followed the removed one; removing the last entry wraps to 0.
func ClampAfterRemove(cursor, n int) int {
	if n <= 0 || cursor >= n {
		return 0
	}
	if cursor < 0 {
		return 0
	}
	return cursor
}

// Within reports whether index i is at most radius steps from cursor.
// Distance is plain index distance; it does not wrap around the ends.
func Within(i, cursor, radius int) bool {
	d := i - cursor
	if d < 0 {
		d = -d
	}
	return d <= radius
}

// Window returns the indices in [cursor-radius, cursor+radius] clipped to
// [0, n) with cursor itself excluded, in ascending order.
func Window(cursor, n, radius int) []int {
	if n <= 0 {
		return nil
	}
	start := max(0, cursor-radius)
	end := min(n-1, cursor+radius)
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		if i != cursor {
			out = append(out, i)
		}
	}
	return out
}
