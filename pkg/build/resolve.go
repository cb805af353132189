package build

import (
	"fmt"
	"os"
	"time"

	"github.com/platinummonkey/pawndoc/pkg/config"
)

// IsStale reports whether a binary must be rebuilt: it is absent, or the
// source was modified strictly after it
func IsStale(sourceMod time.Time, binaryExists bool, binaryMod time.Time) bool {
	if !binaryExists {
		return true
	}
	return sourceMod.After(binaryMod)
}

// Resolve locates the source and binary of a plugin and decides staleness.
// It returns ErrSourceMissing when the source file does not exist.
func Resolve(cfg *config.Config, name string) (*Artifacts, error) {
	art := &Artifacts{
		Name:     name,
		Source:   cfg.SourcePath(name),
		ErrorLog: cfg.ErrorLogPath(name),
	}

	srcInfo, err := os.Stat(art.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, art.Source)
		}
		return nil, fmt.Errorf("failed to stat source %s: %w", art.Source, err)
	}
	if srcInfo.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceMissing, art.Source)
	}
	art.SourceModTime = srcInfo.ModTime()

	candidates := []struct {
		path     string
		disabled bool
	}{
		{cfg.BinaryPath(name), false},
		{cfg.DisabledBinaryPath(name), true},
	}

	for _, c := range candidates {
		info, err := os.Stat(c.path)
		if err != nil || info.IsDir() {
			continue
		}
		art.Binary = c.path
		art.Disabled = c.disabled
		art.BinaryExists = true
		art.BinaryModTime = info.ModTime()
		break
	}

	// New builds go to the disabled directory until someone enables them
	if !art.BinaryExists {
		art.Binary = cfg.DisabledBinaryPath(name)
		art.Disabled = true
	}

	art.NeedsCompile = IsStale(art.SourceModTime, art.BinaryExists, art.BinaryModTime)
	return art, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
