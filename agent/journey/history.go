package journey

// History is the append-only log of actions taken so far, oldest first.
// Append never modifies the receiver's backing array.
type History []string

// Append returns a new History with entry added.
func (h History) Append(entry string) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, entry)
}

// Recent returns a copy of the last n entries.
func (h History) Recent(n int) []string {
	if n <= 0 || len(h) == 0 {
		return []string{}
	}
	if n > len(h) {
		n = len(h)
	}
	out := make([]string, n)
	copy(out, h[len(h)-n:])
	return out
}
