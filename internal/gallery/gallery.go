// Package gallery keeps the most recent generated images, newest first,
// optionally mirrored to a JSON snapshot file.
package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sj-versent/demo-aws-summit-2025/internal/model"
)

const (
	DefaultCapacity = 12
	DefaultMaxBytes = 5 << 20

	snapshotVersion = 1
)

var ErrQuotaExceeded = errors.New("gallery snapshot exceeds storage quota")

type Options struct {
	StateFile string
	Capacity  int
	// MaxBytes caps the snapshot size. Zero means DefaultMaxBytes.
	MaxBytes int
	Logger   zerolog.Logger
	Now      func() time.Time
}

type Gallery struct {
	mu       sync.RWMutex
	images   []model.GeneratedImage
	capacity int

	stateFile string
	maxBytes  int
	write     func(path string, data []byte) error

	log zerolog.Logger
	now func() time.Time
}

func New(opts Options) *Gallery {
	g := &Gallery{
		capacity:  opts.Capacity,
		stateFile: opts.StateFile,
		maxBytes:  opts.MaxBytes,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if g.capacity <= 0 {
		g.capacity = DefaultCapacity
	}
	if g.maxBytes <= 0 {
		g.maxBytes = DefaultMaxBytes
	}
	if g.now == nil {
		g.now = time.Now
	}
	g.write = g.writeFile

	if g.stateFile != "" {
		if err := g.load(); err != nil {
			g.log.Warn().Err(err).Str("file", g.stateFile).Msg("gallery load failed")
		}
	}
	return g
}

type snapshot struct {
	Version int                    `json:"version"`
	Images  []model.GeneratedImage `json:"images"`
	SavedAt int64                  `json:"savedAt"`
}

func (g *Gallery) load() error {
	data, err := os.ReadFile(g.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file snapshot
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != snapshotVersion {
		return fmt.Errorf("unsupported gallery snapshot version %d", file.Version)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.images = g.images[:0]
	for _, img := range file.Images {
		if img.ID == "" || img.Payload == "" {
			continue
		}
		g.images = append(g.images, img)
		if len(g.images) == g.capacity {
			break
		}
	}
	return nil
}

// Add puts a new image at the front, evicting the oldest entries beyond
// capacity. When the snapshot cannot be written, progressively fewer images
// are kept until one fits.
func (g *Gallery) Add(prompt, payload string) model.GeneratedImage {
	img := model.GeneratedImage{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Payload:   payload,
		Timestamp: g.now().UTC(),
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	images := make([]model.GeneratedImage, 0, g.capacity)
	images = append(images, img)
	images = append(images, g.images...)
	if len(images) > g.capacity {
		images = images[:g.capacity]
	}
	g.images = g.persistLocked(images)
	return img
}

// List returns a copy, newest first.
func (g *Gallery) List() []model.GeneratedImage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.GeneratedImage, len(g.images))
	copy(out, g.images)
	return out
}

func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.images)
}

func (g *Gallery) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images = g.persistLocked(nil)
}

// persistLocked writes images, halving the count on each failed attempt, and
// returns the prefix that was stored. Without a state file nothing is written.
// If even an empty snapshot cannot be written the storage is unusable and the
// images stay in memory only.
func (g *Gallery) persistLocked(images []model.GeneratedImage) []model.GeneratedImage {
	if g.stateFile == "" {
		return images
	}
	n := len(images)
	for {
		err := g.writeSnapshot(images[:n])
		if err == nil {
			if n < len(images) {
				g.log.Warn().Int("kept", n).Int("dropped", len(images)-n).Msg("gallery trimmed to fit storage")
			}
			return images[:n]
		}
		if n == 0 {
			g.log.Error().Err(err).Str("file", g.stateFile).Msg("gallery persist failed")
			return images
		}
		n /= 2
	}
}

func (g *Gallery) writeSnapshot(images []model.GeneratedImage) error {
	if images == nil {
		images = []model.GeneratedImage{}
	}
	data, err := json.MarshalIndent(snapshot{Version: snapshotVersion, Images: images, SavedAt: g.now().UnixMilli()}, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if len(data) > g.maxBytes {
		return ErrQuotaExceeded
	}
	return g.write(g.stateFile, data)
}

// writeFile replaces path atomically via a temp file in the same directory.
func (g *Gallery) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	return os.Rename(tmpName, path)
}
