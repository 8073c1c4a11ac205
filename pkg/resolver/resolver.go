// Package resolver serves resources from binary archives and from disk. It
// caches archive directories per container path and, on request, resource
// payloads, mirroring the write-once archive model: load on demand, release
// explicitly, re-read from disk afterwards.
package resolver

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/beam-cloud/ristretto"
	"github.com/tidwall/btree"
	"golang.org/x/sync/singleflight"

	"github.com/res2h/res2h-go/pkg/archive"
	"github.com/res2h/res2h-go/pkg/checksum"
	"github.com/res2h/res2h-go/pkg/common"
)

// LoadOptions control a single LoadResource call.
type LoadOptions struct {
	// KeepInCache pins the loaded payload on the directory entry until
	// ReleaseData.
	KeepInCache bool
	// Verify compares the payload against the checksum stored in the
	// directory.
	Verify bool
}

// DefaultLoadOptions verify checksums and do not pin payloads.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Verify: true}
}

type loadedArchive struct {
	info      common.ArchiveInfo
	resources []*common.ResourceInfo // directory order
	index     *btree.BTree           // name -> *common.ResourceInfo
}

func newIndex() *btree.BTree {
	return btree.New(func(a, b interface{}) bool {
		return a.(*common.ResourceInfo).Name < b.(*common.ResourceInfo).Name
	})
}

func (a *loadedArchive) get(name string) *common.ResourceInfo {
	item := a.index.Get(&common.ResourceInfo{Name: name})
	if item == nil {
		return nil
	}
	return item.(*common.ResourceInfo)
}

// Resolver looks up logical names across loaded archives and the
// filesystem. All methods are safe for concurrent use.
type Resolver struct {
	mu       sync.RWMutex
	archives []*loadedArchive // insertion order; first match wins
	disk     []*common.ResourceInfo
	content  *ristretto.Cache[string, []byte]
	group    singleflight.Group
	metrics  Metrics
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithContentCache adds a size-bounded cache for payloads loaded without
// KeepInCache. ReleaseData drops it together with the pinned payloads.
func WithContentCache(maxBytes int64) Option {
	return func(r *Resolver) error {
		cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: 1e5,
			MaxCost:     maxBytes,
			BufferItems: 64,
		})
		if err != nil {
			return fmt.Errorf("failed to create content cache: %w", err)
		}
		r.content = cache
		return nil
	}
}

// New creates an empty Resolver.
func New(opts ...Option) (*Resolver, error) {
	r := &Resolver{}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Locate returns the offset of the archive magic inside path, 0 for
// standalone archives.
func (r *Resolver) Locate(path string) (uint64, error) {
	return archive.FindStartOffset(path)
}

// ArchiveInfo returns validated archive-level metadata for path, from the
// cache when the archive is loaded.
func (r *Resolver) ArchiveInfo(path string) (common.ArchiveInfo, error) {
	r.mu.RLock()
	for _, a := range r.archives {
		if a.info.Path == path {
			info := a.info
			r.mu.RUnlock()
			return info, nil
		}
	}
	r.mu.RUnlock()
	return archive.ReadInfo(path)
}

// LoadArchive validates the archive in path and caches its directory. The
// payload is not read yet. Loading the same path again discards the cached
// state and reloads from disk.
func (r *Resolver) LoadArchive(path string) error {
	info, err := archive.ReadInfo(path)
	if err != nil {
		return err
	}
	resources, err := archive.ReadDirectory(info)
	if err != nil {
		return err
	}
	loaded := &loadedArchive{info: info, resources: resources, index: newIndex()}
	for _, res := range resources {
		loaded.index.Set(res)
	}

	r.mu.Lock()
	kept := r.archives[:0]
	for _, a := range r.archives {
		if a.info.Path != path {
			kept = append(kept, a)
		}
	}
	r.archives = append(kept, loaded)
	r.mu.Unlock()

	r.metrics.recordArchiveLoaded(path, len(resources))
	return nil
}

// LoadResource returns a resource by logical name. Names starting with ":/"
// are resolved against loaded archives in load order; anything else is read
// from disk. The returned payload slice may be shared with the cache and
// must not be mutated.
func (r *Resolver) LoadResource(name string, opts LoadOptions) (common.ResourceInfo, error) {
	if common.IsInternalName(name) {
		return r.loadFromArchives(name, opts)
	}
	return r.loadFromDisk(name, opts)
}

func (r *Resolver) loadFromArchives(name string, opts LoadOptions) (common.ResourceInfo, error) {
	r.mu.RLock()
	info, res := r.lookup(name)
	if res == nil {
		r.mu.RUnlock()
		return common.ResourceInfo{}, fmt.Errorf("resource %q is in no loaded archive, use LoadArchive first: %w",
			name, common.ErrUnknownResource)
	}
	if res.Data != nil {
		out := *res
		r.mu.RUnlock()
		r.metrics.recordHit(name)
		return out, nil
	}
	entry := *res
	r.mu.RUnlock()

	// collapse concurrent loads of the same resource; the verify flag is
	// part of the key so a verified load never shares an in-flight
	// unverified read. A payload already in the content cache is returned
	// as cached, without checking it again
	key := name
	if opts.Verify {
		key += "\x00verify"
	}
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if r.content != nil {
			if data, ok := r.content.Get(name); ok {
				r.metrics.recordHit(name)
				return data, nil
			}
		}
		data, err := r.readPayload(info, entry, opts.Verify)
		if err != nil {
			return nil, err
		}
		r.metrics.recordMiss(name, len(data))
		return data, nil
	})
	if err != nil {
		return common.ResourceInfo{}, err
	}
	data := v.([]byte)

	if opts.KeepInCache {
		r.mu.Lock()
		if _, cached := r.lookup(name); cached != nil {
			cached.Data = data
		}
		r.mu.Unlock()
	} else if r.content != nil {
		r.content.Set(name, data, int64(len(data)))
	}

	entry.Data = data
	return entry, nil
}

// lookup finds the first directory entry for name across loaded archives.
// Callers must hold the lock.
func (r *Resolver) lookup(name string) (common.ArchiveInfo, *common.ResourceInfo) {
	for _, a := range r.archives {
		if res := a.get(name); res != nil {
			return a.info, res
		}
	}
	return common.ArchiveInfo{}, nil
}

// readPayload reads one resource out of its container file.
func (r *Resolver) readPayload(info common.ArchiveInfo, entry common.ResourceInfo, verify bool) ([]byte, error) {
	f, err := os.Open(info.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %q for reading: %w", info.Path, err)
	}
	defer f.Close()

	data := make([]byte, entry.Size)
	if entry.Size > 0 {
		n, err := f.ReadAt(data, int64(info.Offset+entry.Offset))
		if uint64(n) != entry.Size {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("read %d of %d bytes of %q: %w", n, entry.Size, entry.Name, common.ErrShortRead)
			}
			return nil, fmt.Errorf("failed to read %q from %q: %w", entry.Name, info.Path, err)
		}
	}
	if verify {
		if got := checksum.Sum(info.Bits, data, 0); got != entry.Checksum {
			r.metrics.recordVerifyFailure(entry.Name)
			return nil, fmt.Errorf("resource %q has checksum %#x, expected %#x: %w",
				entry.Name, got, entry.Checksum, common.ErrChecksumMismatch)
		}
	}
	return data, nil
}

func (r *Resolver) loadFromDisk(name string, opts LoadOptions) (common.ResourceInfo, error) {
	r.mu.RLock()
	for _, res := range r.disk {
		if res.Name == name && res.Data != nil {
			out := *res
			r.mu.RUnlock()
			r.metrics.recordHit(name)
			return out, nil
		}
	}
	r.mu.RUnlock()

	data, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return common.ResourceInfo{}, fmt.Errorf("file %q: %w", name, common.ErrUnknownResource)
		}
		return common.ResourceInfo{}, fmt.Errorf("failed to read file %q: %w", name, err)
	}
	r.metrics.recordMiss(name, len(data))

	out := common.ResourceInfo{Name: name, Size: uint64(len(data)), Data: data}
	if opts.KeepInCache {
		r.mu.Lock()
		found := false
		for _, res := range r.disk {
			if res.Name == name {
				res.Size = out.Size
				res.Data = data
				found = true
				break
			}
		}
		if !found {
			cached := out
			r.disk = append(r.disk, &cached)
		}
		r.mu.Unlock()
	}
	return out, nil
}

// ResourceInfos returns every known resource in order: archive directories
// in load order, then cached disk resources. Loaded payloads are shared,
// not copied.
func (r *Resolver) ResourceInfos() []common.ResourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []common.ResourceInfo
	for _, a := range r.archives {
		for _, res := range a.resources {
			out = append(out, *res)
		}
	}
	for _, res := range r.disk {
		out = append(out, *res)
	}
	return out
}

// ReleaseData drops all cached payloads. Directories and archive metadata
// stay loaded; the next LoadResource re-reads from disk. Callers holding a
// payload slice keep it alive.
func (r *Resolver) ReleaseData() {
	r.mu.Lock()
	for _, a := range r.archives {
		for _, res := range a.resources {
			res.Data = nil
		}
	}
	for _, res := range r.disk {
		res.Data = nil
	}
	r.mu.Unlock()

	if r.content != nil {
		r.content.Clear()
	}
}

// Metrics returns a snapshot of the resolver counters.
func (r *Resolver) Metrics() MetricsSnapshot {
	return r.metrics.Snapshot()
}
