package res2h

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/rs/zerolog/log"

	"github.com/res2h/res2h-go/pkg/common"
	"github.com/res2h/res2h-go/pkg/resolver"
)

// DumpOptions configure dumping an archive or an embedded archive.
type DumpOptions struct {
	// ArchivePath is a standalone archive or a file with one embedded.
	ArchivePath string
	// OutputPath is the directory extracted resources are written to.
	// Ignored with InfoOnly.
	OutputPath string
	// InfoOnly lists archive and resource information without extracting.
	InfoOnly bool
	// FullPaths recreates the resource path structure below OutputPath
	// instead of flattening names.
	FullPaths bool
	// Out receives the listing; defaults to stdout.
	Out io.Writer
}

// DumpArchive prints information about an archive and optionally extracts
// every resource to a directory.
func DumpArchive(options DumpOptions) error {
	out := options.Out
	if out == nil {
		out = os.Stdout
	}

	res, err := resolver.New()
	if err != nil {
		return err
	}
	if err := res.LoadArchive(options.ArchivePath); err != nil {
		return err
	}
	info, err := res.ArchiveInfo(options.ArchivePath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Archive file: %q\n", info.Path)
	fmt.Fprintf(out, "Data offset: %d bytes\n", info.Offset)
	fmt.Fprintf(out, "Size: %d bytes\n", info.Size)
	fmt.Fprintf(out, "File version: %d\n", info.FileVersion)
	fmt.Fprintf(out, "Bit depth: %d\n", info.Bits)
	fmt.Fprintf(out, "Checksum: %#x\n", info.Checksum)

	resources := res.ResourceInfos()
	fmt.Fprintf(out, "Resources: %d\n", len(resources))
	for _, r := range resources {
		fmt.Fprintf(out, "  %q, %d bytes at offset %d, checksum %#x\n", r.Name, r.Size, r.Offset, r.Checksum)
	}
	if options.InfoOnly {
		return nil
	}

	for _, r := range resources {
		loaded, err := res.LoadResource(r.Name, resolver.LoadOptions{Verify: true})
		if err != nil {
			return err
		}
		target, err := extractPath(options.OutputPath, r.Name, options.FullPaths)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %q: %w", target, err)
		}
		if err := os.WriteFile(target, loaded.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %q: %w", target, err)
		}
		log.Debug().Str("name", r.Name).Str("target", target).Msg("extracted resource")
	}

	log.Info().Int("resources", len(resources)).Str("path", options.OutputPath).Msg("archive extracted")
	return nil
}

// extractPath maps a logical resource name to an output file path, either
// flattened to the base name or with its directory structure kept.
func extractPath(outputPath, name string, fullPaths bool) (string, error) {
	rel := strings.TrimPrefix(name, common.InternalMarker)
	if !fullPaths {
		rel = filepath.Base(rel)
	}
	target := filepath.Join(outputPath, filepath.FromSlash(rel))
	// a crafted name must not be able to climb out of the output directory
	inside, err := filepath.Rel(filepath.Clean(outputPath), target)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("resource name %q escapes output directory", name)
	}
	return target, nil
}
