package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/res2h/res2h-go/pkg/common"
)

// FindStartOffset returns the offset of the archive magic inside path. The
// offset is 0 for a standalone archive. For embedded archives the file is
// scanned backwards from EOF in overlapping 4096-byte windows, so a magic
// straddling two windows is still found; the rightmost occurrence wins,
// since embedded archives are produced by appending.
func FindStartOffset(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %q for reading: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, common.MagicLength)
	if _, err := io.ReadFull(f, head); err == nil && bytes.Equal(head, common.MagicBytes) {
		return 0, nil
	}

	stat, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	size := stat.Size()

	window := make([]byte, common.BlockSize)
	pos := size - common.BlockSize
	if pos < 0 {
		pos = 0
	}
	for {
		want := int64(len(window))
		if pos+want > size {
			want = size - pos
		}
		n, err := f.ReadAt(window[:want], pos)
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("failed to read %q at %d: %w", path, pos, err)
		}
		if idx := bytes.LastIndex(window[:n], common.MagicBytes); idx >= 0 {
			return uint64(pos) + uint64(idx), nil
		}
		if pos == 0 {
			break
		}
		// overlap adjacent windows by len(magic)-1 bytes so a header on the
		// boundary is seen whole
		pos -= common.BlockSize - (common.MagicLength - 1)
		if pos < 0 {
			pos = 0
		}
	}
	return 0, fmt.Errorf("no valid archive found in %q: %w", path, common.ErrNoArchive)
}
