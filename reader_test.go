package mmdbcore

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/student/mmdbcore/cache"
	"github.com/student/mmdbcore/internal/mmdberrors"
)

type testCity struct {
	Country struct {
		IsoCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City map[string]string `maxminddb:"city"`
}

func TestFromBytesLookupAndDecode(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{
			"country": map[string]any{"iso_code": "AU"},
			"city":    map[string]any{"en": "Sydney"},
		}},
		{Network: "2.2.2.0/24", Data: map[string]any{
			"country": map[string]any{"iso_code": "US"},
		}},
	})

	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	require.Equal(t, uint(4), reader.Metadata.IPVersion)
	require.Equal(t, uint(24), reader.Metadata.RecordSize)
	require.Equal(t, "Test", reader.Metadata.DatabaseType)

	result := reader.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.NoError(t, result.Err())
	require.True(t, result.Found())

	var rec testCity
	require.NoError(t, result.Decode(&rec))
	require.Equal(t, "AU", rec.Country.IsoCode)
	require.Equal(t, "Sydney", rec.City["en"])

	var isoCode string
	require.NoError(t, result.DecodePath(&isoCode, "country", "iso_code"))
	require.Equal(t, "AU", isoCode)

	other := reader.Lookup(netip.MustParseAddr("2.2.2.2"))
	require.True(t, other.Found())
	var otherRec testCity
	require.NoError(t, other.Decode(&otherRec))
	require.Equal(t, "US", otherRec.Country.IsoCode)
}

func TestLookupNotFound(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("8.8.8.8"))
	require.NoError(t, result.Err())
	require.False(t, result.Found())

	var rec testCity
	require.NoError(t, result.Decode(&rec))
	require.Empty(t, rec.Country.IsoCode)
}

func TestLookupIPVersionMismatch(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("::1"))
	require.Error(t, result.Err())
	require.False(t, result.Found())
}

func TestIPv6Database(t *testing.T) {
	buf := buildDB(t, 6, 28, []dbEntry{
		{Network: "2001:db8::/32", Data: map[string]any{"country": map[string]any{"iso_code": "JP"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("2001:db8::1"))
	require.True(t, result.Found())
	var rec testCity
	require.NoError(t, result.Decode(&rec))
	require.Equal(t, "JP", rec.Country.IsoCode)
}

func TestRecordSize32(t *testing.T) {
	buf := buildDB(t, 4, 32, []dbEntry{
		{Network: "10.0.0.0/8", Data: map[string]any{"country": map[string]any{"iso_code": "CA"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("10.1.2.3"))
	require.True(t, result.Found())
	var rec testCity
	require.NoError(t, result.Decode(&rec))
	require.Equal(t, "CA", rec.Country.IsoCode)
}

func TestInvalidDatabase(t *testing.T) {
	_, err := FromBytes([]byte("not a database"))
	require.Error(t, err)
}

func TestEmptyDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.mmdb")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := Open(path)
	require.Error(t, err)
}

func TestOpenFromDisk(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})
	dir := t.TempDir()
	path := filepath.Join(dir, "test.mmdb")
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	reader, err := Open(path)
	require.NoError(t, err)

	result := reader.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.True(t, result.Found())

	require.NoError(t, reader.Close())
}

func TestLookupAfterClose(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	require.NoError(t, reader.Close())

	result := reader.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.Error(t, result.Err())
}

func TestResultNetwork(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.True(t, result.Found())
	network := result.Network()
	require.Equal(t, 24, network.Bits())
	require.True(t, network.Contains(netip.MustParseAddr("1.1.1.200")))
}

func TestLookupOffsetRoundtrip(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.True(t, result.Found())

	again := reader.LookupOffset(result.RecordOffset())
	var rec testCity
	require.NoError(t, again.Decode(&rec))
	require.Equal(t, "AU", rec.Country.IsoCode)
}

func TestDecodePathMissingMapKeyIsTyped(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{
			"country": map[string]any{"iso_code": "AU"},
		}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.True(t, result.Found())

	var v string
	err = result.DecodePath(&v, "country", "missing_key")

	var notMatch mmdberrors.LookupPathDoesNotMatchError
	require.ErrorAs(t, err, &notMatch)
	require.Equal(t, "missing_key", notMatch.Step)
}

func TestDecodePathOutOfRangeIndexIsTyped(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{
			"tags": []any{"a", "b"},
		}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.True(t, result.Found())

	var v string
	err = result.DecodePath(&v, "tags", 5)

	var notMatch mmdberrors.LookupPathDoesNotMatchError
	require.ErrorAs(t, err, &notMatch)
	require.Equal(t, 5, notMatch.Step)
}

func TestDecodePathTypeMismatchIsTyped(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{
			"country": map[string]any{"iso_code": "AU"},
		}},
	})
	reader, err := FromBytes(buf)
	require.NoError(t, err)
	defer reader.Close()

	result := reader.Lookup(netip.MustParseAddr("1.1.1.1"))
	require.True(t, result.Found())

	// "country" resolves to a map, not a slice, so an int step is invalid.
	var v string
	err = result.DecodePath(&v, "country", 0)

	var invalid mmdberrors.InvalidLookupPathError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 0, invalid.Step)

	// The top-level value is a map, so a string step against it is fine,
	// but indexing into "iso_code" (a string) with another string is not.
	err = result.DecodePath(&v, "country", "iso_code", "nested")
	var invalid2 mmdberrors.InvalidLookupPathError
	require.True(t, errors.As(err, &invalid2))
}

func TestFromBytesWithSharedCacheInterns(t *testing.T) {
	buf := buildDB(t, 4, 24, []dbEntry{
		{Network: "1.1.1.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
		{Network: "2.2.2.0/24", Data: map[string]any{"country": map[string]any{"iso_code": "AU"}}},
	})

	shared := cache.NewSharedProvider(cache.DefaultOptions()).Acquire()
	reader, err := FromBytes(buf, WithCache(shared))
	require.NoError(t, err)
	defer reader.Close()

	var first, second testCity
	require.NoError(t, reader.Lookup(netip.MustParseAddr("1.1.1.1")).Decode(&first))
	require.NoError(t, reader.Lookup(netip.MustParseAddr("2.2.2.2")).Decode(&second))
	require.Equal(t, "AU", first.Country.IsoCode)
	require.Equal(t, "AU", second.Country.IsoCode)
}
