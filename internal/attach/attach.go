package attach

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"deskseed/internal/domain"
)

// Picker is the random source used to choose a file.
type Picker interface {
	IntN(n int) int
}

// Sampler picks random files from a directory to use as attachments. The
// directory listing is read once and cached for the lifetime of the Sampler.
type Sampler struct {
	FS   billy.Filesystem
	Dir  string
	Rand Picker

	mu     sync.Mutex
	listed bool
	files  []string
}

// NewOS returns a Sampler over a directory of the local filesystem.
func NewOS(dir string, r Picker) *Sampler {
	return &Sampler{FS: osfs.New(dir), Dir: ".", Rand: r}
}

// Files returns the cached listing of candidate files, reading the directory
// on first use. A missing directory yields an empty listing.
func (s *Sampler) Files() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listed {
		return s.files, nil
	}
	infos, err := s.FS.ReadDir(s.dir())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list attachments in %s: %w", s.dir(), err)
	}
	var files []string
	for _, fi := range infos {
		if !fi.Mode().IsRegular() || strings.HasPrefix(fi.Name(), ".") {
			continue
		}
		files = append(files, path.Join(s.dir(), fi.Name()))
	}
	sort.Strings(files)
	s.files = files
	s.listed = true
	return files, nil
}

// Pick chooses a random file. It reports false when no file is available.
func (s *Sampler) Pick() (string, bool, error) {
	files, err := s.Files()
	if err != nil {
		return "", false, err
	}
	if len(files) == 0 {
		return "", false, nil
	}
	return files[s.Rand.IntN(len(files))], true, nil
}

// Read loads a picked file. Safe for concurrent use.
func (s *Sampler) Read(name string) (domain.Attachment, error) {
	data, err := util.ReadFile(s.FS, name)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("read attachment %s: %w", name, err)
	}
	return domain.Attachment{Name: path.Base(name), Content: data}, nil
}

// Sample picks and reads one file.
func (s *Sampler) Sample() (domain.Attachment, bool, error) {
	name, ok, err := s.Pick()
	if err != nil || !ok {
		return domain.Attachment{}, false, err
	}
	a, err := s.Read(name)
	if err != nil {
		return domain.Attachment{}, false, err
	}
	return a, true, nil
}

func (s *Sampler) dir() string {
	if s.Dir == "" {
		return "."
	}
	return s.Dir
}
