package decoder

import "math/big"

// deserializer receives a stream of decode events for a single value,
// including its nested maps and slices, without requiring a reflect.Value
// destination. It is the building block for decode targets that don't need
// struct-tag matching, such as a plain *any.
type deserializer interface {
	ShouldSkip(offset uintptr) (bool, error)
	StartSlice(size uint) error
	StartMap(size uint) error
	End() error
	String(v string) error
	Float64(v float64) error
	Bytes(v []byte) error
	Uint16(v uint16) error
	Uint32(v uint32) error
	Int32(v int32) error
	Uint64(v uint64) error
	Uint128(v *big.Int) error
	Bool(v bool) error
	Float32(v float32) error
}

// anyStackEntry tracks one open container while anyDeserializer is assembling
// a nested map[string]any / []any tree.
type anyStackEntry struct {
	value  any
	curNum int
}

// anyDeserializer builds a map[string]any / []any / scalar tree without
// touching reflect, for the common case of decoding into a plain *any.
type anyDeserializer struct {
	stack []*anyStackEntry
	value any
	key   *string
}

func (d *anyDeserializer) ShouldSkip(uintptr) (bool, error) {
	return false, nil
}

func (d *anyDeserializer) StartSlice(size uint) error {
	return d.add(make([]any, size))
}

func (d *anyDeserializer) StartMap(size uint) error {
	return d.add(make(map[string]any, size))
}

func (d *anyDeserializer) End() error {
	d.stack = d.stack[:len(d.stack)-1]
	return nil
}

func (d *anyDeserializer) String(v string) error   { return d.add(v) }
func (d *anyDeserializer) Float64(v float64) error { return d.add(v) }
func (d *anyDeserializer) Bytes(v []byte) error    { return d.add(v) }
func (d *anyDeserializer) Uint16(v uint16) error   { return d.add(uint64(v)) }
func (d *anyDeserializer) Uint32(v uint32) error   { return d.add(uint64(v)) }
func (d *anyDeserializer) Int32(v int32) error     { return d.add(int(v)) }
func (d *anyDeserializer) Uint64(v uint64) error   { return d.add(v) }
func (d *anyDeserializer) Uint128(v *big.Int) error {
	return d.add(v)
}
func (d *anyDeserializer) Bool(v bool) error        { return d.add(v) }
func (d *anyDeserializer) Float32(v float32) error  { return d.add(v) }

// add appends v either as the top-level result or into whichever container
// is currently open, then pushes v onto the stack itself if it is a new
// container.
func (d *anyDeserializer) add(v any) error {
	if len(d.stack) == 0 {
		d.value = v
	} else {
		top := d.stack[len(d.stack)-1]
		switch parent := top.value.(type) {
		case map[string]any:
			if d.key == nil {
				key, _ := v.(string)
				d.key = &key
			} else {
				parent[*d.key] = v
				d.key = nil
			}
		case []any:
			parent[top.curNum] = v
			top.curNum++
		}
	}

	switch v.(type) {
	case map[string]any, []any:
		d.stack = append(d.stack, &anyStackEntry{value: v})
	}

	return nil
}
