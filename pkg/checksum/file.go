package checksum

import (
	"fmt"
	"io"
	"os"

	"github.com/res2h/res2h-go/pkg/common"
)

// SumReader folds r into a checksum at the given bit depth, reading in
// 4096-byte blocks. A limit > 0 clamps the number of bytes folded; limit 0
// folds until EOF. Hitting EOF before the limit is not an error, the fold
// simply covers fewer bytes.
func SumReader(bits uint8, r io.Reader, limit uint64, seed uint64) (uint64, error) {
	buf := make([]byte, common.BlockSize)
	var done uint64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			readSize := uint64(n)
			if limit > 0 && done+readSize > limit {
				readSize = limit - done
			}
			seed = Sum(bits, buf[:readSize], seed)
			done += readSize
			if limit > 0 && done >= limit {
				return seed, nil
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return seed, nil
		}
		if err != nil {
			return seed, fmt.Errorf("checksum read failed: %w", err)
		}
	}
}

// SumFile folds a file into a checksum at the given bit depth, starting at
// byte offset. A limit > 0 clamps the number of bytes folded.
func SumFile(bits uint8, path string, offset uint64, limit uint64, seed uint64) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return seed, fmt.Errorf("failed to open %q for checksumming: %w", path, err)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			return seed, fmt.Errorf("failed to seek %q to %d: %w", path, offset, err)
		}
	}
	return SumReader(bits, f, limit, seed)
}
