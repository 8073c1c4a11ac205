package resolver

import (
	"sync"

	"github.com/res2h/res2h-go/pkg/common"
)

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns the process-wide resolver. It is created on first use and
// lives until process exit; all cache state is confined to this instance.
// Code that wants isolated caches should use New instead.
func Default() *Resolver {
	defaultOnce.Do(func() {
		defaultResolver, _ = New()
	})
	return defaultResolver
}

// LoadArchive loads an archive directory into the default resolver.
func LoadArchive(path string) error {
	return Default().LoadArchive(path)
}

// LoadResource loads a resource through the default resolver.
func LoadResource(name string, opts LoadOptions) (common.ResourceInfo, error) {
	return Default().LoadResource(name, opts)
}

// ReleaseData drops all payloads cached by the default resolver.
func ReleaseData() {
	Default().ReleaseData()
}
