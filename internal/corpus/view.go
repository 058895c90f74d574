package corpus

// View borrows one record's spans from an Arena. It carries no ownership
// and must not be modified.
type View struct {
	Display []byte
	Search  []rune
	Ref
	// Index is the record's position in corpus order.
	Index int
}

// Text returns the display text as ingested.
func (v View) Text() string {
	return string(v.Display)
}

// SearchText returns the normalized text.
func (v View) SearchText() string {
	return string(v.Search)
}
