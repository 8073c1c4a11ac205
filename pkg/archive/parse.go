package archive

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/res2h/res2h-go/pkg/checksum"
	"github.com/res2h/res2h-go/pkg/common"
)

// ReadInfo locates an archive inside path and reads and validates its
// header, including the whole-archive checksum over everything but the
// trailing checksum word. The checksum range starts at the magic, so
// embedding an archive in a host file does not change it.
func ReadInfo(path string) (common.ArchiveInfo, error) {
	info := common.ArchiveInfo{Path: path}

	offset, err := FindStartOffset(path)
	if err != nil {
		return info, err
	}
	info.Offset = offset

	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("failed to open %q for reading: %w", path, err)
	}
	defer f.Close()

	if err := readFieldAt(f, int64(offset+common.OffsetFileVersion), &info.FileVersion); err != nil {
		return info, err
	}
	if info.FileVersion != common.ArchiveVersion {
		return info, fmt.Errorf("archive file version %d in %q: %w", info.FileVersion, path, common.ErrBadVersion)
	}
	if err := readFieldAt(f, int64(offset+common.OffsetFormatFlags), &info.FormatFlags); err != nil {
		return info, err
	}
	info.Bits = uint8(info.FormatFlags & 0xFF)
	if info.Bits != 32 && info.Bits != 64 {
		return info, fmt.Errorf("archive bit depth %d in %q: %w", info.Bits, path, common.ErrBadWidth)
	}

	wordSize := common.WordSize(info.Bits)
	info.Size, err = readWordAt(f, int64(offset+common.OffsetArchiveSize), info.Bits)
	if err != nil {
		return info, err
	}
	if info.Size == 0 {
		return info, fmt.Errorf("archive %q: %w", path, common.ErrEmptyArchive)
	}
	if info.Size < common.HeaderSize(info.Bits)+wordSize {
		return info, fmt.Errorf("archive %q of %d bytes: %w", path, info.Size, common.ErrShortRead)
	}

	info.Checksum, err = readWordAt(f, int64(offset+info.Size-wordSize), info.Bits)
	if err != nil {
		return info, err
	}
	computed, err := checksum.SumFile(info.Bits, path, offset, info.Size-wordSize, 0)
	if err != nil {
		return info, err
	}
	if computed != info.Checksum {
		return info, fmt.Errorf("archive %q has checksum %#x, expected %#x: %w",
			path, computed, info.Checksum, common.ErrChecksumMismatch)
	}
	return info, nil
}

// ReadDirectory parses the directory entries of a validated archive.
// Entries are returned in file order, which is the order they were written.
func ReadDirectory(info common.ArchiveInfo) ([]*common.ResourceInfo, error) {
	f, err := os.Open(info.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q for reading: %w", info.Path, err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(info.Offset+common.OffsetEntryCount(info.Bits)), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to directory of %q: %w", info.Path, err)
	}
	r := bufio.NewReaderSize(f, common.BlockSize)

	var count uint32
	if err := readField(r, &count); err != nil {
		return nil, err
	}
	resources := make([]*common.ResourceInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := readField(r, &nameLen); err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, mapReadErr(err)
		}
		var entryFlags uint32
		if err := readField(r, &entryFlags); err != nil {
			return nil, err
		}
		res := &common.ResourceInfo{Name: string(name)}
		if res.Size, err = readWord(r, info.Bits); err != nil {
			return nil, err
		}
		if res.Offset, err = readWord(r, info.Bits); err != nil {
			return nil, err
		}
		if res.Checksum, err = readWord(r, info.Bits); err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, nil
}

func mapReadErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("truncated archive: %w", common.ErrShortRead)
	}
	return fmt.Errorf("archive read failed: %w", err)
}

func readField(r io.Reader, v any) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return mapReadErr(err)
	}
	return nil
}

func readFieldAt(f *os.File, offset int64, v any) error {
	return readField(io.NewSectionReader(f, offset, 8), v)
}

func readWord(r io.Reader, bits uint8) (uint64, error) {
	if bits == 64 {
		var v uint64
		err := readField(r, &v)
		return v, err
	}
	var v uint32
	err := readField(r, &v)
	return uint64(v), err
}

func readWordAt(f *os.File, offset int64, bits uint8) (uint64, error) {
	return readWord(io.NewSectionReader(f, offset, 8), bits)
}
