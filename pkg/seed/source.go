package seed

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"contact-scraper/pkg/utils"
)

// Source yields the seed URLs of one run
type Source interface {
	Seeds(ctx context.Context) ([]string, error)
}

// FileSource reads seed URLs from a line-delimited file.
// Blank lines and lines starting with '#' are skipped.
type FileSource struct {
	Path string
	log  *logrus.Entry
}

// NewFileSource creates a FileSource for path
func NewFileSource(path string, log *logrus.Entry) *FileSource {
	return &FileSource{Path: path, log: log.WithField("component", "seed_file")}
}

// Seeds reads the file. An empty result is ErrEmptyInput.
func (fs *FileSource) Seeds(ctx context.Context) ([]string, error) {
	f, err := os.Open(fs.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening seed file '%s': %w", utils.ErrFilesystem, fs.Path, err)
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "\ufeff")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading seed file '%s': %w", utils.ErrFilesystem, fs.Path, err)
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: seed file '%s' has no URLs", utils.ErrEmptyInput, fs.Path)
	}
	fs.log.WithField("count", len(seeds)).Info("Loaded seed URLs from file")
	return seeds, nil
}

// StaticSource serves a fixed list of seed URLs
type StaticSource []string

// Seeds returns the non-blank entries. An empty result is ErrEmptyInput.
func (s StaticSource) Seeds(context.Context) ([]string, error) {
	var seeds []string
	for _, raw := range s {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			seeds = append(seeds, trimmed)
		}
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: no URLs given", utils.ErrEmptyInput)
	}
	return seeds, nil
}
