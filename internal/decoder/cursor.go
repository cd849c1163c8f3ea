package decoder

import (
	"iter"

	"github.com/student/mmdbcore/internal/mmdberrors"
)

// Decoder is a cursor over a single value in the data section. It decodes
// exactly one value per Read* call, following at most one pointer
// indirection per call (the format guarantees pointers never point at other
// pointers), and leaves the cursor positioned at the next sibling value.
//
// Unlike [ReflectionDecoder], Decoder does not build a JSON-pointer-like
// error path automatically - callers that need that do their own bookkeeping,
// or use the reflection decoder instead. Errors are still wrapped with the
// offset they occurred at.
type Decoder struct {
	d      DataDecoder
	offset uint

	// hasNextOffset records whether beginRead has run at least once, so
	// tests and callers can distinguish "cursor untouched" from "cursor
	// consumed a zero-length value at offset 0".
	hasNextOffset bool
}

// decoderOptions is reserved for future Decoder construction options. It is
// intentionally empty today; NewDecoder's variadic opts parameter exists so
// callers and tests can depend on the functional-options shape without a
// breaking signature change later.
type decoderOptions struct{}

// NewDecoder creates a [Decoder] positioned at offset within dd's buffer.
func NewDecoder(dd DataDecoder, offset uint, opts ...func(*decoderOptions)) *Decoder {
	o := &decoderOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return &Decoder{d: dd, offset: offset}
}

// getNextOffset reports the offset the cursor has reached, for callers (the
// reflection decoder) that hand the buffer to a custom Unmarshaler and need
// to resume decoding where it left off.
func (d *Decoder) getNextOffset() (uint, error) {
	return d.offset, nil
}

// beginRead decodes the control byte at the cursor's current offset,
// following a single pointer indirection if present, and reports where the
// value's payload begins (dataOffset) and where the cursor should resume
// after this value is fully consumed (resumeOffset). For scalar kinds other
// than Bool, resumeOffset is dataOffset+size; a Bool has no payload bytes,
// so its resumeOffset is dataOffset; for a value reached through a pointer,
// it's the offset just past the pointer's own bytes, regardless of where the
// pointed-to value ends.
func (d *Decoder) beginRead() (kind Kind, size, dataOffset, resumeOffset uint, err error) {
	d.hasNextOffset = true
	kind, size, afterCtrl, err := d.d.DecodeCtrlData(d.offset)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	if kind != KindPointer {
		// Bool has no payload bytes of its own; size is the value (0 or 1),
		// not a length, so the cursor must not skip past it.
		if kind == KindBool {
			return kind, size, afterCtrl, afterCtrl, nil
		}
		return kind, size, afterCtrl, afterCtrl + size, nil
	}

	pointer, afterPointer, err := d.d.DecodePointer(size, afterCtrl)
	if err != nil {
		return 0, 0, 0, 0, err
	}

	pkind, psize, pdataOffset, err := d.d.DecodeCtrlData(pointer)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if pkind == KindPointer {
		return 0, 0, 0, 0, mmdberrors.NewInvalidDatabaseError(
			"pointer points to another pointer, which is not allowed",
		)
	}
	return pkind, psize, pdataOffset, afterPointer, nil
}

func (d *Decoder) typeError(expected string, got Kind) error {
	return mmdberrors.NewInvalidDatabaseError("expected %s but found %s", expected, got.String())
}

// Value is a decoded-value view: one self-describing data-section entry,
// tagged by Kind, with exactly the fields relevant to that Kind populated.
// For KindPointer it carries the resolved target offset rather than a
// decoded payload - callers that want the pointed-to value call DecodeAt or
// Resolve again.
type Value struct {
	Kind Kind

	Bool      bool
	Int32     int32
	Uint16    uint16
	Uint32    uint32
	Uint64    uint64
	Uint128Hi uint64
	Uint128Lo uint64
	Float64   float64
	Float32   float32
	String    string
	Bytes     []byte

	// Offset is, for KindPointer, the target offset in the data section; for
	// KindMap and KindSlice, the offset of the first pair/element. Size is
	// the pair or element count for containers, unused otherwise.
	Offset uint
	Size   uint
}

// DecodeAt decodes exactly one value at offset without following pointers: a
// pointer control byte yields a Value{Kind: KindPointer} carrying the
// target offset in Value.Offset. It returns the offset just past the
// value's own control bytes and payload (or, for a pointer, just past the
// pointer's own bytes - not the pointed-to value).
func (d *Decoder) DecodeAt(offset uint) (Value, uint, error) {
	kind, size, dataOffset, err := d.d.DecodeCtrlData(offset)
	if err != nil {
		return Value{}, 0, d.wrapError(err)
	}

	if kind == KindPointer {
		pointer, afterPointer, err := d.d.DecodePointer(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: KindPointer, Offset: pointer}, afterPointer, nil
	}

	switch kind {
	case KindBool:
		v, _, err := d.d.decodeBool(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Bool: v}, dataOffset, nil

	case KindFloat64:
		v, next, err := d.d.DecodeFloat64(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Float64: v}, next, nil

	case KindFloat32:
		v, next, err := d.d.DecodeFloat32(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Float32: v}, next, nil

	case KindInt32:
		v, next, err := d.d.DecodeInt32(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Int32: v}, next, nil

	case KindUint16:
		v, next, err := d.d.DecodeUint16(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Uint16: v}, next, nil

	case KindUint32:
		v, next, err := d.d.DecodeUint32(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Uint32: v}, next, nil

	case KindUint64:
		v, next, err := d.d.DecodeUint64(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Uint64: v}, next, nil

	case KindUint128:
		hi, lo, next, err := d.d.decodeUint128(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Uint128Hi: hi, Uint128Lo: lo}, next, nil

	case KindString:
		v, next, err := d.d.DecodeString(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, String: v}, next, nil

	case KindBytes:
		v, next, err := d.d.DecodeBytes(size, dataOffset)
		if err != nil {
			return Value{}, 0, d.wrapError(err)
		}
		return Value{Kind: kind, Bytes: v}, next, nil

	case KindMap, KindSlice:
		// Payload bytes are not consumed here; the caller walks the
		// dataOffset cursor to reach each pair/element.
		return Value{Kind: kind, Offset: dataOffset, Size: size}, dataOffset, nil

	default:
		return Value{}, 0, d.wrapError(mmdberrors.NewInvalidDatabaseError(
			"unknown type kind: %d", int(kind),
		))
	}
}

// Resolve behaves like DecodeAt, but if the value at offset is a pointer it
// dereferences it once more at the target; a pointer whose target is itself
// a pointer is invalid-data, matching the format guarantee that pointers
// never target other pointers.
func (d *Decoder) Resolve(offset uint) (Value, uint, error) {
	value, next, err := d.DecodeAt(offset)
	if err != nil {
		return Value{}, 0, err
	}
	if value.Kind != KindPointer {
		return value, next, nil
	}

	target, _, err := d.DecodeAt(value.Offset)
	if err != nil {
		return Value{}, 0, err
	}
	if target.Kind == KindPointer {
		return Value{}, 0, d.wrapError(mmdberrors.NewInvalidDatabaseError(
			"pointer points to another pointer, which is not allowed",
		))
	}
	return target, next, nil
}

// Path walks steps (string map keys, int slice indices) from the value at
// the cursor's current offset and decodes the value found at the end of the
// path, the same way ReadMap/ReadSlice walk containers but without
// requiring the caller to drain an iterator at each level. A string step
// against a non-map, or an int step against a non-slice, is an
// InvalidLookupPathError; a map key that is absent, or a slice index out of
// range, is a LookupPathDoesNotMatchError.
func (d *Decoder) Path(steps ...any) (Value, error) {
	offset := d.offset

PATH:
	for _, step := range steps {
		kind, size, dataOffset, err := d.d.DecodeCtrlData(offset)
		if err != nil {
			return Value{}, d.wrapError(err)
		}

		if kind == KindPointer {
			pointer, _, err := d.d.DecodePointer(size, dataOffset)
			if err != nil {
				return Value{}, d.wrapError(err)
			}
			kind, size, dataOffset, err = d.d.DecodeCtrlData(pointer)
			if err != nil {
				return Value{}, d.wrapError(err)
			}
			if kind == KindPointer {
				return Value{}, d.wrapError(mmdberrors.NewInvalidDatabaseError(
					"pointer points to another pointer, which is not allowed",
				))
			}
		}

		switch s := step.(type) {
		case string:
			if kind != KindMap {
				return Value{}, d.wrapError(mmdberrors.NewInvalidLookupPathError(s))
			}
			found := false
			for range size {
				var key []byte
				key, dataOffset, err = d.d.decodeKey(dataOffset)
				if err != nil {
					return Value{}, d.wrapError(err)
				}
				if string(key) == s {
					offset = dataOffset
					found = true
					continue PATH
				}
				dataOffset, err = d.d.nextValueOffset(dataOffset, 1)
				if err != nil {
					return Value{}, d.wrapError(err)
				}
			}
			if !found {
				return Value{}, d.wrapError(mmdberrors.NewLookupPathDoesNotMatchError(s))
			}

		case int:
			if kind != KindSlice {
				return Value{}, d.wrapError(mmdberrors.NewInvalidLookupPathError(s))
			}
			var i uint
			if s < 0 {
				if size < uint(-s) {
					return Value{}, d.wrapError(mmdberrors.NewLookupPathDoesNotMatchError(s))
				}
				i = size - uint(-s)
			} else {
				if size <= uint(s) {
					return Value{}, d.wrapError(mmdberrors.NewLookupPathDoesNotMatchError(s))
				}
				i = uint(s)
			}
			offset, err = d.d.nextValueOffset(dataOffset, i)
			if err != nil {
				return Value{}, d.wrapError(err)
			}

		default:
			return Value{}, d.wrapError(mmdberrors.NewInvalidDatabaseError(
				"unexpected type for value in path: %T", step,
			))
		}
	}

	value, _, err := d.Resolve(offset)
	if err != nil {
		return Value{}, err
	}
	return value, nil
}

// ReadBool decodes a boolean at the cursor.
func (d *Decoder) ReadBool() (bool, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return false, d.wrapError(err)
	}
	if kind != KindBool {
		return false, d.wrapError(d.typeError("a bool", kind))
	}
	value, _, err := d.d.decodeBool(size, dataOffset)
	if err != nil {
		return false, d.wrapError(err)
	}
	d.offset = resumeOffset
	return value, nil
}

// ReadFloat64 decodes a 64-bit float at the cursor.
func (d *Decoder) ReadFloat64() (float64, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return 0, d.wrapError(err)
	}
	if kind != KindFloat64 {
		return 0, d.wrapError(d.typeError("a float64", kind))
	}
	value, _, err := d.d.DecodeFloat64(size, dataOffset)
	if err != nil {
		return 0, d.wrapError(err)
	}
	d.offset = resumeOffset
	return value, nil
}

// ReadFloat32 decodes a 32-bit float at the cursor.
func (d *Decoder) ReadFloat32() (float32, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return 0, d.wrapError(err)
	}
	if kind != KindFloat32 {
		return 0, d.wrapError(d.typeError("a float32", kind))
	}
	value, _, err := d.d.DecodeFloat32(size, dataOffset)
	if err != nil {
		return 0, d.wrapError(err)
	}
	d.offset = resumeOffset
	return value, nil
}

// ReadInt32 decodes a signed 32-bit integer at the cursor.
func (d *Decoder) ReadInt32() (int32, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return 0, d.wrapError(err)
	}
	if kind != KindInt32 {
		return 0, d.wrapError(d.typeError("an int32", kind))
	}
	value, _, err := d.d.DecodeInt32(size, dataOffset)
	if err != nil {
		return 0, d.wrapError(err)
	}
	d.offset = resumeOffset
	return value, nil
}

// ReadUint16 decodes an unsigned 16-bit integer at the cursor.
func (d *Decoder) ReadUint16() (uint16, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return 0, d.wrapError(err)
	}
	if kind != KindUint16 {
		return 0, d.wrapError(d.typeError("a uint16", kind))
	}
	value, _, err := d.d.DecodeUint16(size, dataOffset)
	if err != nil {
		return 0, d.wrapError(err)
	}
	d.offset = resumeOffset
	return value, nil
}

// ReadUint32 decodes an unsigned 32-bit integer at the cursor.
func (d *Decoder) ReadUint32() (uint32, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return 0, d.wrapError(err)
	}
	if kind != KindUint32 {
		return 0, d.wrapError(d.typeError("a uint32", kind))
	}
	value, _, err := d.d.DecodeUint32(size, dataOffset)
	if err != nil {
		return 0, d.wrapError(err)
	}
	d.offset = resumeOffset
	return value, nil
}

// ReadUint64 decodes an unsigned 64-bit integer at the cursor.
func (d *Decoder) ReadUint64() (uint64, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return 0, d.wrapError(err)
	}
	if kind != KindUint64 {
		return 0, d.wrapError(d.typeError("a uint64", kind))
	}
	value, _, err := d.d.DecodeUint64(size, dataOffset)
	if err != nil {
		return 0, d.wrapError(err)
	}
	d.offset = resumeOffset
	return value, nil
}

// ReadUint128 decodes an unsigned 128-bit integer at the cursor, returned as
// big-endian (hi, lo) halves to stay allocation-free.
func (d *Decoder) ReadUint128() (hi, lo uint64, err error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return 0, 0, d.wrapError(err)
	}
	if kind != KindUint128 {
		return 0, 0, d.wrapError(d.typeError("a uint128", kind))
	}
	hi, lo, _, err = d.d.decodeUint128(size, dataOffset)
	if err != nil {
		return 0, 0, d.wrapError(err)
	}
	d.offset = resumeOffset
	return hi, lo, nil
}

// ReadString decodes a UTF-8 string at the cursor.
func (d *Decoder) ReadString() (string, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return "", d.wrapError(err)
	}
	if kind != KindString {
		return "", d.wrapError(d.typeError("a string", kind))
	}
	value, _, err := d.d.DecodeString(size, dataOffset)
	if err != nil {
		return "", d.wrapError(err)
	}
	d.offset = resumeOffset
	return value, nil
}

// ReadBytes decodes a raw byte slice at the cursor.
func (d *Decoder) ReadBytes() ([]byte, error) {
	kind, size, dataOffset, resumeOffset, err := d.beginRead()
	if err != nil {
		return nil, d.wrapError(err)
	}
	if kind != KindBytes {
		return nil, d.wrapError(d.typeError("bytes", kind))
	}

	buffer := d.d.Buffer()
	if dataOffset+size > uint(len(buffer)) {
		return nil, d.wrapError(mmdberrors.NewInvalidDatabaseError(
			"byte slice at offset %d with length %d exceeds buffer length %d",
			dataOffset, size, len(buffer),
		))
	}
	value := make([]byte, size)
	copy(value, buffer[dataOffset:dataOffset+size])
	d.offset = resumeOffset
	return value, nil
}

// ReadMap decodes the map at the cursor, returning an iterator over its keys
// and the number of pairs. Each yielded key must be followed by exactly one
// Read* call to consume the associated value before the iterator advances;
// the map's own resume position is established once the iterator has been
// fully drained.
func (d *Decoder) ReadMap() (iter.Seq2[[]byte, error], uint, error) {
	kind, size, dataOffset, _, err := d.beginRead()
	if err != nil {
		return nil, 0, d.wrapError(err)
	}
	if kind != KindMap {
		return nil, 0, d.wrapError(d.typeError("a map", kind))
	}

	offset := dataOffset
	remaining := size
	seq := func(yield func([]byte, error) bool) {
		for remaining > 0 {
			key, afterKey, err := d.d.decodeKey(offset)
			if err != nil {
				d.offset = offset
				yield(nil, d.wrapError(err))
				return
			}
			remaining--
			d.offset = afterKey
			if !yield(key, nil) {
				return
			}
			offset = d.offset
		}
		d.offset = offset
	}
	return seq, size, nil
}

// ReadSlice decodes the slice at the cursor, returning an iterator over its
// elements and the element count. Each iteration must be followed by exactly
// one Read* call to consume the element before advancing.
func (d *Decoder) ReadSlice() (iter.Seq[error], uint, error) {
	kind, size, dataOffset, _, err := d.beginRead()
	if err != nil {
		return nil, 0, d.wrapError(err)
	}
	if kind != KindSlice {
		return nil, 0, d.wrapError(d.typeError("a slice", kind))
	}

	offset := dataOffset
	seq := func(yield func(error) bool) {
		for range size {
			d.offset = offset
			if !yield(nil) {
				return
			}
			offset = d.offset
		}
		d.offset = offset
	}
	return seq, size, nil
}

// SkipValue advances the cursor past the value at the current offset
// without decoding it.
func (d *Decoder) SkipValue() error {
	d.hasNextOffset = true
	newOffset, err := d.d.nextValueOffset(d.offset, 1)
	if err != nil {
		return d.wrapError(err)
	}
	d.offset = newOffset
	return nil
}

// PeekKind reports the Kind of the value at the cursor without consuming it,
// following a pointer if present so the caller sees the kind of the
// ultimately-pointed-to value.
func (d *Decoder) PeekKind() (Kind, error) {
	kind, size, afterCtrl, err := d.d.DecodeCtrlData(d.offset)
	if err != nil {
		return 0, d.wrapError(err)
	}
	if kind != KindPointer {
		return kind, nil
	}

	pointer, _, err := d.d.DecodePointer(size, afterCtrl)
	if err != nil {
		return 0, d.wrapError(err)
	}
	pkind, _, _, err := d.d.DecodeCtrlData(pointer)
	if err != nil {
		return 0, d.wrapError(err)
	}
	return pkind, nil
}
