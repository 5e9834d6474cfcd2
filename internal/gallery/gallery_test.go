package gallery

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.UnixMilli(1_700_000_000_000) }

func prompts(g *Gallery) []string {
	var out []string
	for _, img := range g.List() {
		out = append(out, img.Prompt)
	}
	return out
}

func TestGallery_NewestFirstAndCapacity(t *testing.T) {
	g := New(Options{Capacity: 3, Now: fixedNow})
	for _, p := range []string{"a", "b", "c", "d"} {
		g.Add(p, "Zm9v")
	}

	assert.Equal(t, []string{"d", "c", "b"}, prompts(g))
	assert.Equal(t, 3, g.Len())
}

func TestGallery_AddAssignsIDAndTimestamp(t *testing.T) {
	g := New(Options{Now: fixedNow})
	img := g.Add("a red bicycle", "Zm9v")

	assert.NotEmpty(t, img.ID)
	assert.Equal(t, fixedNow().UTC(), img.Timestamp)
	assert.Equal(t, "Zm9v", img.Payload)
}

func TestGallery_ListIsACopy(t *testing.T) {
	g := New(Options{})
	g.Add("a", "Zm9v")
	list := g.List()
	list[0].Prompt = "changed"
	assert.Equal(t, "a", g.List()[0].Prompt)
}

func TestGallery_PersistsAndReloads(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "gallery.json")

	g1 := New(Options{StateFile: stateFile, Now: fixedNow})
	g1.Add("first", "AAAA")
	g1.Add("second", "BBBB")

	info, err := os.Stat(stateFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	g2 := New(Options{StateFile: stateFile, Now: fixedNow})
	assert.Equal(t, []string{"second", "first"}, prompts(g2))

	g2.Clear()
	g3 := New(Options{StateFile: stateFile})
	assert.Equal(t, 0, g3.Len())
}

func TestGallery_LoadTrimsToCapacity(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "gallery.json")
	g1 := New(Options{StateFile: stateFile, Capacity: 5})
	for _, p := range []string{"a", "b", "c", "d"} {
		g1.Add(p, "Zm9v")
	}

	g2 := New(Options{StateFile: stateFile, Capacity: 2})
	assert.Equal(t, []string{"d", "c"}, prompts(g2))
}

func TestGallery_BadSnapshotIsIgnored(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "gallery.json")
	require.NoError(t, os.WriteFile(stateFile, []byte(`{"version":7,"images":[]}`), 0o600))

	g := New(Options{StateFile: stateFile})
	assert.Equal(t, 0, g.Len())
}

func TestGallery_QuotaBacksOffByHalving(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "gallery.json")
	payload := strings.Repeat("A", 1000)

	g := New(Options{StateFile: stateFile, Capacity: 4, MaxBytes: 3000, Now: fixedNow})
	g.Add("a", payload)
	g.Add("b", payload)
	assert.Equal(t, []string{"b", "a"}, prompts(g))

	// Three entries no longer fit, so the next try keeps half of them.
	g.Add("c", payload)
	assert.Equal(t, []string{"c"}, prompts(g))

	reloaded := New(Options{StateFile: stateFile, Capacity: 4})
	assert.Equal(t, []string{"c"}, prompts(reloaded))
}

func TestGallery_WriteFailureBacksOff(t *testing.T) {
	g := New(Options{StateFile: filepath.Join(t.TempDir(), "gallery.json"), Capacity: 8})
	var attempts []int
	g.write = func(path string, data []byte) error {
		n := strings.Count(string(data), `"id"`)
		attempts = append(attempts, n)
		if n > 2 {
			return errors.New("disk full")
		}
		return nil
	}

	for _, p := range []string{"a", "b", "c", "d", "e"} {
		g.Add(p, "Zm9v")
	}

	// Three entries never fit, so those writes fall back to one image.
	assert.Equal(t, []string{"e"}, prompts(g))
	assert.Equal(t, []int{1, 2, 3, 1, 2, 3, 1}, attempts[:7])
}

func TestGallery_UnwritableStorageKeepsMemory(t *testing.T) {
	g := New(Options{StateFile: filepath.Join(t.TempDir(), "gallery.json")})
	g.write = func(string, []byte) error { return errors.New("read-only") }

	g.Add("a", "Zm9v")
	g.Add("b", "Zm9v")
	assert.Equal(t, []string{"b", "a"}, prompts(g))
}
