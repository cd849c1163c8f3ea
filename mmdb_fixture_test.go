package mmdbcore

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// This file builds small, well-formed (and deliberately broken) MaxMind DB
// images entirely in memory, byte by byte, so the rest of the test suite
// doesn't depend on any .mmdb fixture files on disk. The encoding mirrors
// the control-byte/size/pointer rules internal/decoder.DataDecoder expects:
// a type tag in the top 3 bits of the first byte (or, for types above 7, a
// second byte holding type-7), a small literal size in the bottom 5 bits,
// then the payload.

const (
	emptySentinel    = 0xFFFFFFFF
	dataSentinelBase = 0x80000000
)

// treeBuilder assembles a binary search tree node-by-node from inserted
// prefixes, deferring node-count-dependent pointer math to finalize.
type treeBuilder struct {
	nodes [][2]uint32
}

func (b *treeBuilder) insert(bits []byte, prefixLen int, dataOffset uint) {
	if len(b.nodes) == 0 {
		b.nodes = append(b.nodes, [2]uint32{emptySentinel, emptySentinel})
	}
	node := 0
	for i := range prefixLen {
		bit := (bits[i/8] >> uint(7-(i%8))) & 1
		if i == prefixLen-1 {
			b.nodes[node][bit] = dataSentinelBase | uint32(dataOffset)
			return
		}
		child := b.nodes[node][bit]
		if child == emptySentinel || child&dataSentinelBase != 0 {
			newIdx := uint32(len(b.nodes))
			b.nodes = append(b.nodes, [2]uint32{emptySentinel, emptySentinel})
			b.nodes[node][bit] = newIdx
			node = int(newIdx)
		} else {
			node = int(child)
		}
	}
}

// finalize resolves every sentinel now that the final node count is known:
// emptySentinel becomes the empty-record value (== nodeCount), and a data
// sentinel becomes nodeCount + separator + dataOffset, per resolveDataPointer.
func (b *treeBuilder) finalize() (nodes [][2]uint32, nodeCount uint) {
	nodeCount = uint(len(b.nodes))
	out := make([][2]uint32, len(b.nodes))
	for i, n := range b.nodes {
		for j, v := range n {
			switch {
			case v == emptySentinel:
				out[i][j] = uint32(nodeCount)
			case v&dataSentinelBase != 0:
				out[i][j] = uint32(nodeCount) + uint32(dataSectionSeparatorSize) + (v &^ dataSentinelBase)
			default:
				out[i][j] = v
			}
		}
	}
	return out, nodeCount
}

func encodeTree(nodes [][2]uint32, recordSize uint) []byte {
	buf := make([]byte, 0, len(nodes)*int(recordSize)/4)
	for _, n := range nodes {
		l, r := n[0], n[1]
		switch recordSize {
		case 24:
			buf = append(buf, byte(l>>16), byte(l>>8), byte(l), byte(r>>16), byte(r>>8), byte(r))
		case 28:
			b3 := byte((l>>24)&0xF)<<4 | byte((r>>24)&0xF)
			buf = append(buf, byte(l>>16), byte(l>>8), byte(l), b3, byte(r>>16), byte(r>>8), byte(r))
		case 32:
			buf = append(buf, byte(l>>24), byte(l>>16), byte(l>>8), byte(l),
				byte(r>>24), byte(r>>16), byte(r>>8), byte(r))
		}
	}
	return buf
}

func ctrlBytes(kind, size int) []byte {
	if size >= 29 {
		panic("ctrlBytes: fixture encoder only supports literal sizes under 29")
	}
	if kind <= 7 {
		return []byte{byte(kind<<5) | byte(size)}
	}
	return []byte{byte(size), byte(kind - 7)}
}

// encodeValue renders v as a data-section value. It covers the subset of
// kinds the fixture builders below actually need.
func encodeValue(v any) []byte {
	switch val := v.(type) {
	case string:
		return append(ctrlBytes(2, len(val)), []byte(val)...)
	case []byte:
		return append(ctrlBytes(4, len(val)), val...)
	case bool:
		b := 0
		if val {
			b = 1
		}
		return ctrlBytes(14, b)
	case uint16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, val)
		return append(ctrlBytes(5, 2), buf...)
	case uint32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, val)
		return append(ctrlBytes(6, 4), buf...)
	case int32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(val))
		return append(ctrlBytes(8, 4), buf...)
	case uint64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, val)
		return append(ctrlBytes(9, 8), buf...)
	case float64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(val))
		return append(ctrlBytes(3, 8), buf...)
	case float32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(val))
		return append(ctrlBytes(15, 4), buf...)
	case map[string]any:
		out := ctrlBytes(7, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, encodeValue(k)...)
			out = append(out, encodeValue(val[k])...)
		}
		return out
	case []any:
		out := ctrlBytes(11, len(val))
		for _, e := range val {
			out = append(out, encodeValue(e)...)
		}
		return out
	default:
		panic(fmt.Sprintf("encodeValue: unsupported fixture type %T", v))
	}
}

// dbEntry is one record to insert into a synthetic database: Network is a
// CIDR prefix and Data is whatever encodeValue knows how to render.
type dbEntry struct {
	Network string
	Data    any
}

// buildDB assembles a complete, well-formed MaxMind DB image: search tree,
// 16-byte separator, data section, and metadata, in that order.
func buildDB(t *testing.T, ipVersion, recordSize uint, entries []dbEntry) []byte {
	t.Helper()

	var dataSection []byte
	tb := &treeBuilder{}
	for _, e := range entries {
		prefix, err := netip.ParsePrefix(e.Network)
		require.NoError(t, err)
		addr := prefix.Addr()

		var bits []byte
		if ipVersion == 6 {
			a16 := addr.As16()
			bits = a16[:]
		} else {
			require.True(t, addr.Is4(), "network %s must be IPv4 for an IPv4 database", e.Network)
			a4 := addr.As4()
			bits = a4[:]
		}

		dataOffset := uint(len(dataSection))
		dataSection = append(dataSection, encodeValue(e.Data)...)
		tb.insert(bits, prefix.Bits(), dataOffset)
	}

	nodes, nodeCount := tb.finalize()
	if nodeCount == 0 {
		// A single, entirely empty root node so the tree is never zero-sized.
		nodes, nodeCount = [][2]uint32{{1, 1}}, 1
	}

	buf := encodeTree(nodes, recordSize)
	buf = append(buf, make([]byte, dataSectionSeparatorSize)...)
	buf = append(buf, dataSection...)
	buf = append(buf, metadataStartMarker...)

	meta := map[string]any{
		"binary_format_major_version": uint16(2),
		"binary_format_minor_version": uint16(0),
		"build_epoch":                 uint64(1_700_000_000),
		"database_type":               "Test",
		"description":                 map[string]any{"en": "Test Database"},
		"ip_version":                  uint16(ipVersion),
		"languages":                   []any{"en"},
		"node_count":                  uint32(nodeCount),
		"record_size":                 uint16(recordSize),
	}
	buf = append(buf, encodeValue(meta)...)
	return buf
}
