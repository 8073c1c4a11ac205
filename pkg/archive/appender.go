package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
	log "github.com/rs/zerolog/log"

	"github.com/res2h/res2h-go/pkg/common"
)

// Append copies the raw bytes of src to the end of dst in 4096-byte blocks.
// Appending a standalone archive to a host file is how embedded archives are
// produced. On error the destination must be assumed partially written.
func Append(dst, src string) error {
	lockPath := dst + ".lock"
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("error acquiring lock for %q: %w", dst, err)
	}
	if !locked {
		return fmt.Errorf("another process is writing %q", dst)
	}
	defer func() {
		fileLock.Unlock()
		os.Remove(lockPath)
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %q for appending: %w", dst, err)
	}
	defer out.Close()

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %q for reading: %w", src, err)
	}
	defer in.Close()

	copied, err := io.CopyBuffer(out, in, make([]byte, common.BlockSize))
	if err != nil {
		return fmt.Errorf("failed to append %q to %q: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", dst, err)
	}

	log.Info().Str("src", src).Str("dst", dst).Int64("bytes", copied).Msg("appended file")
	return nil
}
