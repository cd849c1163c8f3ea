package mmdbcore

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNetworksEnumeratesInsertedPrefixes(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
		{Network: "2.2.2.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "US"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	seen := map[string]string{}
	for result := range reader.Networks() {
		require.NoError(t, result.Err())
		var rec testCity
		require.NoError(t, result.Decode(&rec))
		seen[result.Network().String()] = rec.Country.IsoCode
	}

	require.Equal(t, "AU", seen["1.1.1.0/24"])
	require.Equal(t, "US", seen["2.2.2.0/24"])
	require.Len(t, seen, 2)
}

func TestNetworksIPv6(t *testing.T) {
	buf := buildDB(t, 6, 28, []dbEntry{
		{Network: "2001:db8::/32", Data: map[string]any{"country": map[string]any{"iso_code": "JP"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	var networks []string
	for result := range reader.Networks() {
		require.NoError(t, result.Err())
		networks = append(networks, result.Network().String())
	}
	require.Equal(t, []string{"2001:db8::/32"}, networks)
}

func TestNetworksStopsEarlyWhenNotConsumed(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
		{Network: "2.2.2.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "US"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	count := 0
	for range reader.Networks() {
		count++
		break
	}
	require.Equal(t, 1, count)
}

func TestReadNodeChildren(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	left, right, err := reader.ReadNode(0)
	require.NoError(t, err)
	require.Contains(t, []RecordKind{RecordKindNode, RecordKindEmpty, RecordKindData}, left.Kind)
	require.Contains(t, []RecordKind{RecordKindNode, RecordKindEmpty, RecordKindData}, right.Kind)
}

func TestReadNodeOutOfRange(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	_, _, err = reader.ReadNode(reader.Metadata.NodeCount)
	require.Error(t, err)
}

func TestNetworksAgreesWithLookup(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "3.3.3.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "FR"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	var offset uintptr
	for result := range reader.Networks() {
		require.NoError(t, result.Err())
		offset = result.RecordOffset()
	}

	lookup := reader.Lookup(netip.MustParseAddr("3.3.3.3"))
	require.Equal(t, offset, lookup.RecordOffset())
}
