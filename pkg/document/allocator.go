package document

// HandleAllocator hands out handles that collide with nothing already in a
// document. Allocation never touches the reserved class-policy range.
type HandleAllocator struct {
	used map[Handle]bool
	next Handle
}

// NewHandleAllocator seeds an allocator with every handle the document uses.
func NewHandleAllocator(doc *Document) *HandleAllocator {
	a := &HandleAllocator{used: make(map[Handle]bool), next: 1}
	if doc != nil {
		for _, o := range doc.Objects {
			a.Reserve(o.Handle)
		}
	}
	return a
}

// Reserve marks a handle as taken so Next will never return it.
func (a *HandleAllocator) Reserve(h Handle) {
	a.used[h] = true
}

// Taken reports whether a handle is already in use.
func (a *HandleAllocator) Taken(h Handle) bool {
	return a.used[h]
}

// Next returns the lowest unused positive handle below the reserved floor
// and marks it taken.
func (a *HandleAllocator) Next() Handle {
	floor := Handle(ReservedClassFloor)
	for a.used[a.next] || a.next >= floor {
		if a.next >= floor {
			a.next = 1
		} else {
			a.next++
		}
	}
	h := a.next
	a.used[h] = true
	a.next++
	return h
}
