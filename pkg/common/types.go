package common

import "strings"

// ResourceEntry describes one source file queued for archiving.
type ResourceEntry struct {
	// SourcePath is the on-disk location of the file content.
	SourcePath string
	// Name is the logical name stored in the archive directory. Internal
	// resources conventionally start with ":/".
	Name string
	// Size is the on-disk size of SourcePath at planning time. The writer
	// fails if the file does not produce exactly this many bytes.
	Size uint64
}

// ArchiveInfo holds archive-level metadata read from (or written to) a
// container file.
type ArchiveInfo struct {
	// Path on disk to the archive, or to the file the archive is embedded in.
	Path string
	// Offset of the magic bytes in the file (> 0 for embedded archives).
	Offset uint64
	// FileVersion is the file format version (currently 2).
	FileVersion uint32
	// FormatFlags are the archive option flags; the low 8 bit are the bit depth.
	FormatFlags uint32
	// Bits is the archive bit depth, 32 or 64.
	Bits uint8
	// Size of the whole archive from magic through trailing checksum.
	Size uint64
	// Checksum is the Fletcher-32/64 checksum over the archive minus its
	// trailing checksum word.
	Checksum uint64
}

// ResourceInfo is one parsed directory entry, optionally carrying loaded
// payload bytes.
type ResourceInfo struct {
	// Name is the logical name. Names starting with ":/" live in an archive,
	// anything else refers to a file on disk.
	Name string
	// Size of the raw content in bytes.
	Size uint64
	// Offset of the content relative to the archive start. The absolute file
	// position is archive.Offset + Offset. Zero for disk resources.
	Offset uint64
	// Checksum is the Fletcher-32/64 checksum of the raw content.
	Checksum uint64
	// Data is the raw content, nil until loaded or after release. Loaded
	// buffers are shared between cache and callers and must not be mutated.
	Data []byte
}

// Loaded reports whether the payload bytes are resident in memory.
func (r *ResourceInfo) Loaded() bool {
	return r.Data != nil
}

// IsInternalName reports whether a logical name refers to an archive-resident
// resource rather than a plain file on disk.
func IsInternalName(name string) bool {
	return strings.HasPrefix(name, InternalMarker)
}
