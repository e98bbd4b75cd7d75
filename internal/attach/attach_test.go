package attach

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPicker int

func (f fixedPicker) IntN(n int) int { return int(f) % n }

func TestSampleSkipsHiddenAndDirectories(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "files/report.pdf", []byte("pdf"), 0o644))
	require.NoError(t, util.WriteFile(fs, "files/screen.png", []byte("png"), 0o644))
	require.NoError(t, util.WriteFile(fs, "files/.DS_Store", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("files/nested", 0o755))

	s := &Sampler{FS: fs, Dir: "files", Rand: fixedPicker(1)}
	files, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"files/report.pdf", "files/screen.png"}, files)

	a, ok, err := s.Sample()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "screen.png", a.Name)
	assert.Equal(t, []byte("png"), a.Content)
}

func TestListingIsCached(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "files/a.txt", []byte("a"), 0o644))
	s := &Sampler{FS: fs, Dir: "files", Rand: fixedPicker(0)}
	_, err := s.Files()
	require.NoError(t, err)

	require.NoError(t, util.WriteFile(fs, "files/b.txt", []byte("b"), 0o644))
	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestNoFileAvailable(t *testing.T) {
	s := &Sampler{FS: memfs.New(), Dir: "missing", Rand: fixedPicker(0)}
	_, ok, err := s.Sample()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewOSReadsDirectory(t *testing.T) {
	dir := t.TempDir()
	s := NewOS(dir, fixedPicker(0))
	require.NoError(t, util.WriteFile(s.FS, "log.txt", []byte("hello"), 0o644))
	a, ok, err := s.Sample()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "log.txt", a.Name)
}
