package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gofrs/flock"
	log "github.com/rs/zerolog/log"

	"github.com/res2h/res2h-go/pkg/checksum"
	"github.com/res2h/res2h-go/pkg/common"
)

// planWidth decides the bit depth for a set of entries. 64 bit is required
// when a single resource exceeds what a uint32 can describe, or when the
// worst-case archive size (32-bit header and directory plus payload plus
// trailing checksum) would.
func planWidth(entries []common.ResourceEntry) uint8 {
	var maxData, sumData, nameBytes uint64
	for _, e := range entries {
		sumData += e.Size
		nameBytes += uint64(len(e.Name))
		if e.Size > maxData {
			maxData = e.Size
		}
	}
	if maxData > math.MaxUint32 {
		return 64
	}
	worstCase := common.HeaderSize32 + nameBytes + uint64(len(entries))*common.DirEntrySize32 + sumData + 4
	if worstCase > math.MaxUint32 {
		return 64
	}
	return 32
}

// writeWord writes a size/offset/checksum field at the archive bit depth.
func writeWord(w io.Writer, bits uint8, v uint64) error {
	if bits == 64 {
		return binary.Write(w, binary.LittleEndian, v)
	}
	if v > math.MaxUint32 {
		return fmt.Errorf("value %d in a 32 bit archive: %w", v, common.ErrSizeOverflow)
	}
	return binary.Write(w, binary.LittleEndian, uint32(v))
}

// Create writes a binary archive containing the given resources to dest.
// Entries keep their input order in the directory and the payload region.
// On error the output file is left in an unspecified state and should be
// deleted by the caller.
func Create(entries []common.ResourceEntry, dest string) error {
	bits := planWidth(entries)
	wordSize := common.WordSize(bits)

	log.Info().Str("path", dest).Uint8("bits", bits).Int("entries", len(entries)).Msg("creating binary archive")

	lockPath := dest + ".lock"
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("error acquiring lock for %q: %w", dest, err)
	}
	if !locked {
		return fmt.Errorf("another process is writing %q", dest)
	}
	defer func() {
		fileLock.Unlock()
		os.Remove(lockPath)
	}()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to open %q for writing: %w", dest, err)
	}
	defer out.Close()

	// header with a placeholder archive size, fixed up after the payload
	if _, err := out.Write(common.MagicBytes); err != nil {
		return fmt.Errorf("failed to write magic: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, common.ArchiveVersion); err != nil {
		return fmt.Errorf("failed to write file version: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(bits)); err != nil {
		return fmt.Errorf("failed to write format flags: %w", err)
	}
	if err := writeWord(out, bits, 0); err != nil {
		return fmt.Errorf("failed to write archive size placeholder: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(len(entries))); err != nil {
		return fmt.Errorf("failed to write entry count: %w", err)
	}

	// directory. the payload cursor starts directly behind it
	dataStart := common.HeaderSize(bits) + uint64(len(entries))*common.DirEntrySize(bits)
	for _, e := range entries {
		dataStart += uint64(len(e.Name))
	}
	for _, e := range entries {
		if len(e.Name) > common.MaxNameLength {
			return fmt.Errorf("resource name %q: %w", e.Name[:32], common.ErrNameTooLong)
		}
		if err := binary.Write(out, binary.LittleEndian, uint16(len(e.Name))); err != nil {
			return fmt.Errorf("failed to write name length: %w", err)
		}
		if _, err := io.WriteString(out, e.Name); err != nil {
			return fmt.Errorf("failed to write name: %w", err)
		}
		if err := binary.Write(out, binary.LittleEndian, uint32(0)); err != nil {
			return fmt.Errorf("failed to write entry flags: %w", err)
		}
		entryChecksum, err := checksum.SumFile(bits, e.SourcePath, 0, e.Size, 0)
		if err != nil {
			return fmt.Errorf("failed to checksum %q: %w", e.SourcePath, err)
		}
		if err := writeWord(out, bits, e.Size); err != nil {
			return fmt.Errorf("failed to write data size: %w", err)
		}
		if err := writeWord(out, bits, dataStart); err != nil {
			return fmt.Errorf("failed to write data offset: %w", err)
		}
		if err := writeWord(out, bits, entryChecksum); err != nil {
			return fmt.Errorf("failed to write entry checksum: %w", err)
		}
		log.Debug().Str("name", e.Name).Uint64("size", e.Size).Uint64("offset", dataStart).
			Uint64("checksum", entryChecksum).Msg("created directory entry")
		dataStart += e.Size
	}

	// payload, in directory order
	for _, e := range entries {
		copied, err := copyFileTo(out, e.SourcePath)
		if err != nil {
			return err
		}
		if copied != e.Size {
			return fmt.Errorf("copied %d of %d bytes from %q: %w", copied, e.Size, e.SourcePath, common.ErrShortRead)
		}
	}

	// fix up the archive size, then append the checksum over everything
	// written so far
	pos, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to get output position: %w", err)
	}
	totalSize := uint64(pos) + wordSize
	if _, err := out.Seek(common.OffsetArchiveSize, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to archive size field: %w", err)
	}
	if err := writeWord(out, bits, totalSize); err != nil {
		return fmt.Errorf("failed to write archive size: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", dest, err)
	}

	archiveChecksum, err := checksum.SumFile(bits, dest, 0, totalSize-wordSize, 0)
	if err != nil {
		return fmt.Errorf("failed to checksum archive: %w", err)
	}
	trailer, err := os.OpenFile(dest, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("failed to reopen %q for appending: %w", dest, err)
	}
	defer trailer.Close()
	if err := writeWord(trailer, bits, archiveChecksum); err != nil {
		return fmt.Errorf("failed to write archive checksum: %w", err)
	}
	if err := trailer.Close(); err != nil {
		return fmt.Errorf("failed to close %q: %w", dest, err)
	}

	log.Info().Uint64("size", totalSize).Uint64("checksum", archiveChecksum).Msg("binary archive created")
	return nil
}

// copyFileTo streams a source file to the output in 4096-byte blocks and
// returns the number of bytes copied.
func copyFileTo(out io.Writer, src string) (uint64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %q for reading: %w", src, err)
	}
	defer in.Close()

	var copied uint64
	buf := make([]byte, common.BlockSize)
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return copied, fmt.Errorf("failed to write payload of %q: %w", src, err)
			}
			copied += uint64(n)
		}
		if readErr == io.EOF {
			return copied, nil
		}
		if readErr != nil {
			return copied, fmt.Errorf("failed to read %q: %w", src, readErr)
		}
	}
}
