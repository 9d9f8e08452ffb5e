package identity

import "crosswatch/internal/model"

// Sticky is the single update rule for a track's resolved name: the first
// known name wins and is never replaced by model.UnknownName.
func Sticky(prev, next string) string {
	if known(prev) {
		return prev
	}
	if known(next) {
		return next
	}
	return model.UnknownName
}

func known(name string) bool {
	return name != "" && name != model.UnknownName
}

// Names memoizes resolved names per track for one connection.
type Names struct {
	names map[int]string
}

// NewNames creates an empty memo.
func NewNames() *Names {
	return &Names{names: make(map[int]string)}
}

// Observe records the label resolved on this frame and returns the sticky name.
func (n *Names) Observe(trackID int, label string) string {
	name := Sticky(n.names[trackID], label)
	n.names[trackID] = name
	return name
}

// Name returns the memoized name, model.UnknownName when none.
func (n *Names) Name(trackID int) string {
	return Sticky(n.names[trackID], "")
}

// Retain forgets every track not in ids.
func (n *Names) Retain(ids []int) {
	keep := make(map[int]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	for id := range n.names {
		if !keep[id] {
			delete(n.names, id)
		}
	}
}

// Len returns the number of memoized tracks.
func (n *Names) Len() int {
	return len(n.names)
}
