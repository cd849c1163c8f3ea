package decoder

import (
	"iter"

	set3 "github.com/TomTonic/Set3"

	"github.com/student/mmdbcore/internal/mmdberrors"
)

// IteratedValue is one node from Decoder.Iterate's pre-order walk: the
// decoded value itself, and its nesting depth relative to the walk's root
// (the root value is depth 0). For a KindMap or KindSlice value,
// Value.Size already carries the pair/element count a caller needs to
// reconstruct the tree from this flat list - the walk visits exactly that
// many children immediately afterward, each one depth+1.
type IteratedValue struct {
	Value Value
	Depth uint
}

// Iterate walks the value at the cursor's current offset in pre-order,
// following pointers transparently (the pointer itself is never emitted,
// only the value it resolves to). It tracks the pointer targets on the
// current path in a Set3[uint] so a pointer that would revisit an offset
// still open on the path is reported as an error rather than looped on
// forever; pointers to an offset visited on a different, already-closed
// branch are followed again without complaint, matching the format's use
// of pointers for deduplication rather than strict tree shape.
//
// The walk stops with an error once nesting exceeds the format's maximum
// data structure depth. maxNodes bounds the number of values emitted (not
// counting pointer hops); 0 means unlimited. Exceeding maxNodes yields an
// InvalidDatabaseError rather than truncating silently.
func (d *Decoder) Iterate(maxNodes int) iter.Seq2[IteratedValue, error] {
	root := d.offset

	return func(yield func(IteratedValue, error) bool) {
		visiting := set3.Empty[uint]()
		emitted := 0

		var walk func(offset, depth uint) (next uint, cont bool)
		walk = func(offset, depth uint) (uint, bool) {
			if depth > maximumDataStructureDepth {
				yield(IteratedValue{}, d.wrapError(mmdberrors.NewInvalidDatabaseError(
					"exceeded maximum data structure depth; database is likely corrupt",
				)))
				return 0, false
			}

			value, next, err := d.DecodeAt(offset)
			if err != nil {
				yield(IteratedValue{}, err)
				return 0, false
			}

			if value.Kind == KindPointer {
				if visiting.Contains(value.Offset) {
					yield(IteratedValue{}, d.wrapError(mmdberrors.NewInvalidDatabaseError(
						"pointer at offset %d revisits offset %d still open on this path",
						offset, value.Offset,
					)))
					return 0, false
				}
				visiting.Add(value.Offset)
				_, resolvedOK := walk(value.Offset, depth)
				visiting.Remove(value.Offset)
				if !resolvedOK {
					return 0, false
				}
				return next, true
			}

			if maxNodes > 0 && emitted >= maxNodes {
				yield(IteratedValue{}, d.wrapError(mmdberrors.NewInvalidDatabaseError(
					"exceeded maximum node count %d", maxNodes,
				)))
				return 0, false
			}
			emitted++
			if !yield(IteratedValue{Value: value, Depth: depth}, nil) {
				return 0, false
			}

			switch value.Kind {
			case KindMap:
				childOffset := value.Offset
				for range value.Size {
					var cont bool
					childOffset, cont = walk(childOffset, depth+1) // key
					if cont {
						childOffset, cont = walk(childOffset, depth+1) // value
					}
					if !cont {
						return 0, false
					}
				}
				return childOffset, true

			case KindSlice:
				childOffset := value.Offset
				for range value.Size {
					var cont bool
					childOffset, cont = walk(childOffset, depth+1)
					if !cont {
						return 0, false
					}
				}
				return childOffset, true

			default:
				return next, true
			}
		}

		if final, ok := walk(root, 0); ok {
			d.offset = final
		}
	}
}
