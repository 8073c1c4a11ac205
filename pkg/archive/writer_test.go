package archive

import (
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/res2h/res2h-go/pkg/checksum"
	"github.com/res2h/res2h-go/pkg/common"
)

func writeSource(t *testing.T, dir, name string, content []byte) common.ResourceEntry {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return common.ResourceEntry{
		SourcePath: path,
		Name:       common.InternalMarker + name,
		Size:       uint64(len(content)),
	}
}

func randomContent(seed int64, size int) []byte {
	content := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(content)
	return content
}

func TestCreateSingleResource(t *testing.T) {
	dir := t.TempDir()
	entry := writeSource(t, dir, "hello", []byte("Hello!"))
	dest := filepath.Join(dir, "out.bin")

	require.NoError(t, Create([]common.ResourceEntry{entry}, dest))

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.EqualValues(t, 59, len(raw))
	require.Equal(t, common.MagicBytes, raw[:8])
	require.EqualValues(t, 2, binary.LittleEndian.Uint32(raw[8:]))
	require.EqualValues(t, 32, binary.LittleEndian.Uint32(raw[12:]))
	require.EqualValues(t, 59, binary.LittleEndian.Uint32(raw[16:]))
	require.EqualValues(t, 1, binary.LittleEndian.Uint32(raw[20:]))

	info, err := ReadInfo(dest)
	require.NoError(t, err)
	require.EqualValues(t, 0, info.Offset)
	require.EqualValues(t, 2, info.FileVersion)
	require.EqualValues(t, 32, info.Bits)
	require.EqualValues(t, 59, info.Size)
	require.EqualValues(t, checksum.Sum32(raw[:55], 0), info.Checksum)

	resources, err := ReadDirectory(info)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.Equal(t, ":/hello", resources[0].Name)
	require.EqualValues(t, 6, resources[0].Size)
	require.EqualValues(t, 49, resources[0].Offset)
	require.EqualValues(t, checksum.Sum32([]byte("Hello!"), 0), resources[0].Checksum)
	require.Equal(t, []byte("Hello!"), raw[49:55])
}

func TestCreateDirectoryOrderAndPayload(t *testing.T) {
	dir := t.TempDir()
	contents := map[string][]byte{
		"a.txt":        randomContent(1, 4),
		"b.txt":        randomContent(2, 3),
		"subdir/c.txt": randomContent(3, 4),
		"big.bin":      randomContent(4, 13095),
	}
	// deliberately not lexical: directory order must equal input order
	names := []string{"a.txt", "b.txt", "subdir/c.txt", "big.bin"}
	var entries []common.ResourceEntry
	for _, name := range names {
		entries = append(entries, writeSource(t, dir, name, contents[name]))
	}
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, Create(entries, dest))

	info, err := ReadInfo(dest)
	require.NoError(t, err)
	resources, err := ReadDirectory(info)
	require.NoError(t, err)
	require.Len(t, resources, len(entries))

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)

	cursor := uint64(0)
	for i, res := range resources {
		require.Equal(t, entries[i].Name, res.Name)
		require.Equal(t, entries[i].Size, res.Size)
		if i > 0 {
			// payload regions are contiguous and in directory order
			require.Equal(t, resources[i-1].Offset+resources[i-1].Size, res.Offset)
		}
		require.GreaterOrEqual(t, res.Offset, cursor)
		cursor = res.Offset + res.Size
		require.Equal(t, contents[names[i]], raw[res.Offset:res.Offset+res.Size])
	}
	require.LessOrEqual(t, cursor, info.Size-common.WordSize(info.Bits))
}

func TestCreateEmptyArchive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, Create(nil, dest))

	info, err := ReadInfo(dest)
	require.NoError(t, err)
	require.EqualValues(t, 32, info.Bits)
	require.EqualValues(t, common.HeaderSize32+4, info.Size)

	resources, err := ReadDirectory(info)
	require.NoError(t, err)
	require.Empty(t, resources)
}

func TestCreateNameLengthBoundary(t *testing.T) {
	dir := t.TempDir()
	entry := writeSource(t, dir, "file", []byte("x"))
	dest := filepath.Join(dir, "out.bin")

	entry.Name = strings.Repeat("n", common.MaxNameLength)
	require.NoError(t, Create([]common.ResourceEntry{entry}, dest))
	info, err := ReadInfo(dest)
	require.NoError(t, err)
	resources, err := ReadDirectory(info)
	require.NoError(t, err)
	require.Len(t, resources[0].Name, common.MaxNameLength)

	entry.Name = strings.Repeat("n", common.MaxNameLength+1)
	err = Create([]common.ResourceEntry{entry}, dest)
	require.ErrorIs(t, err, common.ErrNameTooLong)
}

func TestCreateShortSourceIsFatal(t *testing.T) {
	dir := t.TempDir()
	entry := writeSource(t, dir, "short", []byte("abc"))
	entry.Size = 10 // directory promises more bytes than the file has
	dest := filepath.Join(dir, "out.bin")

	err := Create([]common.ResourceEntry{entry}, dest)
	require.ErrorIs(t, err, common.ErrShortRead)
}

func TestCreateUnreadableSourceIsFatal(t *testing.T) {
	dir := t.TempDir()
	entry := common.ResourceEntry{
		SourcePath: filepath.Join(dir, "missing"),
		Name:       ":/missing",
		Size:       4,
	}
	err := Create([]common.ResourceEntry{entry}, filepath.Join(dir, "out.bin"))
	require.Error(t, err)
}

func TestPlanWidth(t *testing.T) {
	small := []common.ResourceEntry{
		{Name: ":/a", Size: 100},
		{Name: ":/b", Size: 1 << 20},
	}
	require.EqualValues(t, 32, planWidth(small))
	require.EqualValues(t, 32, planWidth(nil))

	// a single resource of 2^32-1 bytes pushes the worst-case total past
	// the 32 bit limit
	boundary := []common.ResourceEntry{{Name: ":/big", Size: math.MaxUint32}}
	require.EqualValues(t, 64, planWidth(boundary))

	huge := []common.ResourceEntry{{Name: ":/huge", Size: math.MaxUint32 + 1}}
	require.EqualValues(t, 64, planWidth(huge))

	sum := []common.ResourceEntry{
		{Name: ":/one", Size: 1 << 31},
		{Name: ":/two", Size: 1 << 31},
	}
	require.EqualValues(t, 64, planWidth(sum))
}

func TestCreateChecksumCoversWholeArchive(t *testing.T) {
	dir := t.TempDir()
	entry := writeSource(t, dir, "data", randomContent(5, 5000))
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, Create([]common.ResourceEntry{entry}, dest))

	info, err := ReadInfo(dest)
	require.NoError(t, err)
	computed, err := checksum.SumFile(info.Bits, dest, 0, info.Size-common.WordSize(info.Bits), 0)
	require.NoError(t, err)
	require.Equal(t, info.Checksum, computed)

	// flipping one payload byte must fail whole-archive validation
	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	raw[len(raw)-100] ^= 0xFF
	require.NoError(t, os.WriteFile(dest, raw, 0644))
	_, err = ReadInfo(dest)
	require.ErrorIs(t, err, common.ErrChecksumMismatch)
}
