package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeAtScalar(t *testing.T) {
	// 0x44 't' 'e' 's' 't' - a 4-byte string "test" at offset 0.
	buffer := []byte{0x44, 't', 'e', 's', 't'}
	d := NewDecoder(NewDataDecoder(buffer), 0)

	value, next, err := d.DecodeAt(0)
	require.NoError(t, err)
	require.Equal(t, KindString, value.Kind)
	require.Equal(t, "test", value.String)
	require.Equal(t, uint(5), next)
}

func TestDecodeAtPointerDoesNotFollow(t *testing.T) {
	// A 1-byte pointer at offset 0 targeting offset 5, where "test" lives.
	buffer := []byte{
		0x20, 0x05,
		0x00, 0x00, 0x00,
		0x44, 't', 'e', 's', 't',
	}
	d := NewDecoder(NewDataDecoder(buffer), 0)

	value, next, err := d.DecodeAt(0)
	require.NoError(t, err)
	require.Equal(t, KindPointer, value.Kind)
	require.Equal(t, uint(5), value.Offset)
	require.Equal(t, uint(2), next, "next should be just past the pointer's own bytes")
}

func TestResolveFollowsPointer(t *testing.T) {
	buffer := []byte{
		0x20, 0x05,
		0x00, 0x00, 0x00,
		0x44, 't', 'e', 's', 't',
	}
	d := NewDecoder(NewDataDecoder(buffer), 0)

	value, next, err := d.Resolve(0)
	require.NoError(t, err)
	require.Equal(t, KindString, value.Kind)
	require.Equal(t, "test", value.String)
	require.Equal(t, uint(2), next, "Resolve reports the cursor past the pointer, not the target")
}

func TestResolveRejectsPointerToPointer(t *testing.T) {
	// Pointer at offset 0 -> offset 2, which is itself a pointer -> offset 5.
	buffer := []byte{
		0x20, 0x02,
		0x20, 0x05,
		0x00,
		0x44, 't', 'e', 's', 't',
	}
	d := NewDecoder(NewDataDecoder(buffer), 0)

	_, _, err := d.Resolve(0)
	require.Error(t, err)
}

func TestDecodeAtMapReportsOffsetAndSize(t *testing.T) {
	// {"a": true}: map(1 pair) ctrl, key "a", bool true.
	buffer := []byte{0xE1, 0x41, 'a', 0x01, 0x07}
	d := NewDecoder(NewDataDecoder(buffer), 0)

	value, next, err := d.DecodeAt(0)
	require.NoError(t, err)
	require.Equal(t, KindMap, value.Kind)
	require.Equal(t, uint(1), value.Size)
	require.Equal(t, uint(1), value.Offset, "Offset should point at the first key")
	require.Equal(t, uint(1), next, "container payload is not consumed by DecodeAt")

	key, _, err := d.DecodeAt(value.Offset)
	require.NoError(t, err)
	require.Equal(t, KindString, key.Kind)
	require.Equal(t, "a", key.String)
}

func TestDecodeAtBoolLeavesNoTrailingByte(t *testing.T) {
	// Two adjacent bools followed by a string, decoded purely via DecodeAt
	// to confirm no phantom payload byte is skipped for KindBool.
	buffer := []byte{0x01, 0x07, 0x00, 0x07, 0x44, 'n', 'e', 'x', 't'}
	d := NewDecoder(NewDataDecoder(buffer), 0)

	first, next1, err := d.DecodeAt(0)
	require.NoError(t, err)
	require.Equal(t, KindBool, first.Kind)
	require.True(t, first.Bool)

	second, next2, err := d.DecodeAt(next1)
	require.NoError(t, err)
	require.Equal(t, KindBool, second.Kind)
	require.False(t, second.Bool)

	third, _, err := d.DecodeAt(next2)
	require.NoError(t, err)
	require.Equal(t, KindString, third.Kind)
	require.Equal(t, "next", third.String)
}
