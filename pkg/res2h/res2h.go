// Package res2h is the high-level entry point for producing and inspecting
// binary resource archives: create a standalone archive from files or
// directories, embed one in a host file, and dump or extract the contents
// of either.
package res2h

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	log "github.com/rs/zerolog/log"

	"github.com/res2h/res2h-go/pkg/archive"
	"github.com/res2h/res2h-go/pkg/common"
)

// SetLogLevel configures the logging verbosity for the library.
// Valid levels: "debug", "info", "warn", "error", "disabled".
func SetLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled", "none", "off":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("invalid log level %q: must be one of: debug, info, warn, error, disabled", level)
	}
	return nil
}

// CreateOptions configure archive creation.
type CreateOptions struct {
	// InputPath is a file or a directory of files to archive.
	InputPath string
	// OutputPath receives the archive, or is the host file when AppendMode
	// is set.
	OutputPath string
	// Recurse descends into subdirectories of InputPath.
	Recurse bool
	// AppendMode writes the archive to a temporary file and appends it to
	// OutputPath instead of replacing it.
	AppendMode bool
}

// AppendOptions configure a raw append of one file to another.
type AppendOptions struct {
	SourcePath      string
	DestinationPath string
}

// CreateArchive builds a binary archive from the input path. With
// AppendMode the archive is embedded at the end of OutputPath, which is how
// resources are attached to an executable.
func CreateArchive(options CreateOptions) error {
	log.Info().Msgf("creating archive from %s to %s", options.InputPath, options.OutputPath)

	entries, err := BuildEntries(options.InputPath, options.Recurse)
	if err != nil {
		return err
	}

	if !options.AppendMode {
		if err := archive.Create(entries, options.OutputPath); err != nil {
			return err
		}
		log.Info().Msg("archive created successfully")
		return nil
	}

	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("res2h-%s.bin", uuid.New().String()[:8]))
	defer os.Remove(tempPath)
	if err := archive.Create(entries, tempPath); err != nil {
		return err
	}
	if err := archive.Append(options.OutputPath, tempPath); err != nil {
		return err
	}
	log.Info().Msg("archive embedded successfully")
	return nil
}

// AppendArchive copies the raw bytes of one file to the end of another.
func AppendArchive(options AppendOptions) error {
	log.Info().Msgf("appending %s to %s", options.SourcePath, options.DestinationPath)
	return archive.Append(options.DestinationPath, options.SourcePath)
}

// Locate returns the offset of the archive inside path.
func Locate(path string) (uint64, error) {
	return archive.FindStartOffset(path)
}

// ArchiveInfo reads and validates archive metadata from path.
func ArchiveInfo(path string) (common.ArchiveInfo, error) {
	return archive.ReadInfo(path)
}
