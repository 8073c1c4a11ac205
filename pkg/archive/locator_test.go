package archive

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/res2h/res2h-go/pkg/common"
)

// hostContent builds filler that cannot collide with the magic.
func hostContent(size int) []byte {
	return bytes.Repeat([]byte{0xAA}, size)
}

func createTestArchive(t *testing.T, dir string) string {
	t.Helper()
	entry := writeSource(t, dir, "payload", randomContent(7, 2000))
	dest := filepath.Join(dir, "archive.bin")
	require.NoError(t, Create([]common.ResourceEntry{entry}, dest))
	return dest
}

func TestFindStartOffsetStandalone(t *testing.T) {
	dest := createTestArchive(t, t.TempDir())
	offset, err := FindStartOffset(dest)
	require.NoError(t, err)
	require.EqualValues(t, 0, offset)
}

func TestFindStartOffsetEmbedded(t *testing.T) {
	dir := t.TempDir()
	archivePath := createTestArchive(t, dir)

	hostPath := filepath.Join(dir, "host.bin")
	require.NoError(t, os.WriteFile(hostPath, hostContent(10000), 0644))
	require.NoError(t, Append(hostPath, archivePath))

	offset, err := FindStartOffset(hostPath)
	require.NoError(t, err)
	require.EqualValues(t, 10000, offset)
}

func TestFindStartOffsetMagicStraddlesWindows(t *testing.T) {
	// the scan windows for a 8192-byte file start at 8192-4096=4096 and,
	// stepping back by 4096-7, at 7. a magic crossing byte 4096 is only
	// complete in the second window
	content := hostContent(8192)
	copy(content[4090:], common.MagicBytes)
	path := filepath.Join(t.TempDir(), "straddle.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))

	offset, err := FindStartOffset(path)
	require.NoError(t, err)
	require.EqualValues(t, 4090, offset)
}

func TestFindStartOffsetPicksRightmostMagic(t *testing.T) {
	content := hostContent(3000)
	copy(content[100:], common.MagicBytes)
	copy(content[2000:], common.MagicBytes)
	path := filepath.Join(t.TempDir(), "twice.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))

	offset, err := FindStartOffset(path)
	require.NoError(t, err)
	require.EqualValues(t, 2000, offset)
}

func TestFindStartOffsetNoArchive(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "plain.bin")
	require.NoError(t, os.WriteFile(path, hostContent(20000), 0644))
	_, err := FindStartOffset(path)
	require.ErrorIs(t, err, common.ErrNoArchive)

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = FindStartOffset(empty)
	require.ErrorIs(t, err, common.ErrNoArchive)

	_, err = FindStartOffset(filepath.Join(dir, "missing.bin"))
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrNoArchive)
}

func TestReadInfoRejectsTrailingFakeMagic(t *testing.T) {
	// a file ending in magic bytes followed by garbage must not parse as
	// an archive
	content := hostContent(5000)
	copy(content[4000:], common.MagicBytes)
	binary.LittleEndian.PutUint32(content[4008:], 999) // bogus version
	path := filepath.Join(t.TempDir(), "fake.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))

	_, err := ReadInfo(path)
	require.ErrorIs(t, err, common.ErrBadVersion)
}

func TestReadInfoRejectsBadWidthAndEmpty(t *testing.T) {
	dir := t.TempDir()
	dest := createTestArchive(t, dir)
	raw, err := os.ReadFile(dest)
	require.NoError(t, err)

	badWidth := append([]byte(nil), raw...)
	binary.LittleEndian.PutUint32(badWidth[12:], 16)
	path := filepath.Join(dir, "badwidth.bin")
	require.NoError(t, os.WriteFile(path, badWidth, 0644))
	_, err = ReadInfo(path)
	require.ErrorIs(t, err, common.ErrBadWidth)

	emptySize := append([]byte(nil), raw...)
	binary.LittleEndian.PutUint32(emptySize[16:], 0)
	path = filepath.Join(dir, "emptysize.bin")
	require.NoError(t, os.WriteFile(path, emptySize, 0644))
	_, err = ReadInfo(path)
	require.ErrorIs(t, err, common.ErrEmptyArchive)
}

func TestReadInfoEmbeddedChecksumIsArchiveRelative(t *testing.T) {
	dir := t.TempDir()
	archivePath := createTestArchive(t, dir)
	standalone, err := ReadInfo(archivePath)
	require.NoError(t, err)

	hostPath := filepath.Join(dir, "host.bin")
	require.NoError(t, os.WriteFile(hostPath, hostContent(10000), 0644))
	require.NoError(t, Append(hostPath, archivePath))

	embedded, err := ReadInfo(hostPath)
	require.NoError(t, err)
	require.EqualValues(t, 10000, embedded.Offset)
	require.Equal(t, standalone.Size, embedded.Size)
	require.Equal(t, standalone.Checksum, embedded.Checksum)
	require.Equal(t, standalone.Bits, embedded.Bits)
}
