package protocol

import "strconv"

// TagModulus bounds the tag counter; tags cycle through [0, TagModulus).
const TagModulus = 1000

// TagAllocator hands out cyclic correlation tags. It is owned by a single
// session and is not safe for concurrent use.
type TagAllocator struct {
	next uint16
}

// Next returns the current tag and advances the counter.
func (a *TagAllocator) Next() Tag {
	tag := Tag(strconv.Itoa(int(a.next)))
	a.next = (a.next + 1) % TagModulus
	return tag
}
