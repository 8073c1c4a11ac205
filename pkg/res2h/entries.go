package res2h

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	log "github.com/rs/zerolog/log"

	"github.com/res2h/res2h-go/pkg/common"
)

// BuildEntries turns an input file or directory into the ordered resource
// list the archive writer consumes. Directory walks are lexical, so the
// directory order inside the archive is deterministic. Logical names are the
// forward-slash relative paths below the input directory, prefixed with the
// ":/" internal marker. Subdirectories are only descended into when recurse
// is set.
func BuildEntries(inputPath string, recurse bool) ([]common.ResourceEntry, error) {
	stat, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input %q: %w", inputPath, err)
	}

	if !stat.IsDir() {
		entry := common.ResourceEntry{
			SourcePath: inputPath,
			Name:       common.InternalMarker + filepath.Base(inputPath),
			Size:       uint64(stat.Size()),
		}
		log.Debug().Str("file", inputPath).Str("name", entry.Name).Uint64("size", entry.Size).Msg("found input file")
		return []common.ResourceEntry{entry}, nil
	}

	var entries []common.ResourceEntry
	err = godirwalk.Walk(inputPath, &godirwalk.Options{
		FollowSymbolicLinks: false,
		Unsorted:            false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if !recurse && path != inputPath {
					return filepath.SkipDir
				}
				return nil
			}
			if !de.IsRegular() {
				log.Info().Str("file", path).Msg("skipping non-regular file")
				return nil
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to get size of %q: %w", path, err)
			}
			rel, err := filepath.Rel(inputPath, path)
			if err != nil {
				return fmt.Errorf("failed to relativize %q: %w", path, err)
			}
			entry := common.ResourceEntry{
				SourcePath: path,
				Name:       common.InternalMarker + filepath.ToSlash(rel),
				Size:       uint64(info.Size()),
			}
			log.Debug().Str("file", path).Str("name", entry.Name).Uint64("size", entry.Size).Msg("found input file")
			entries = append(entries, entry)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %q: %w", inputPath, err)
	}
	return entries, nil
}
