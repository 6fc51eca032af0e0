package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	"camera-preview/pkg/storage/consts"
	"camera-preview/pkg/storage/util"
	"camera-preview/pkg/types"
)

var ErrNotFound = errors.New("snapshot not found")

type SnapshotsInfo struct {
	MaxNumber    int    `json:"maxNumber"`
	LatestImage  string `json:"latestImage"`
	LatestCamera string `json:"latestCamera"`

	UpdateAt time.Time `json:"updateAt"`
}

// Storage keeps preview snapshots as numbered JPEG files next to an
// info.json index.
type Storage struct {
	lock    sync.Mutex
	rootDir string
}

func New(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir can not be empty")
	}
	s := &Storage{rootDir: dir}
	if err := util.MkdirAll(s.Dir()); err != nil {
		return nil, err
	}
	if err := s.checkInitInfo(); err != nil {
		return nil, err
	}

	return s, nil
}

// Dir is the directory holding the snapshot files.
func (s *Storage) Dir() string {
	return path.Join(s.rootDir, consts.DefaultSnapshotsDir)
}

// Save writes one JPEG snapshot and returns its file name.
func (s *Storage) Save(cameraID string, image []byte) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	info, err := s.loadInfo()
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%d%s", consts.DefaultPrefix, info.MaxNumber, consts.DefaultImageExt)
	if err = os.WriteFile(path.Join(s.Dir(), name), image, consts.DefaultFilePerm); err != nil {
		return "", err
	}

	info.MaxNumber++
	info.LatestImage = name
	info.LatestCamera = cameraID
	if err = s.dumpInfo(info); err != nil {
		return "", err
	}

	return name, nil
}

func (s *Storage) Info() (*SnapshotsInfo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.loadInfo()
}

func (s *Storage) Get(name string) ([]byte, error) {
	p, err := s.filePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return data, err
}

// List returns the snapshots, newest first.
func (s *Storage) List() ([]types.File, error) {
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		return nil, err
	}
	res := make([]types.File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), consts.DefaultImageExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, err
		}
		res = append(res, types.File{
			Name:    e.Name(),
			Size:    humanize.Bytes(uint64(fi.Size())),
			ModTime: fi.ModTime(),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ModTime.After(res[j].ModTime)
	})

	return res, nil
}

func (s *Storage) filePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return path.Join(s.Dir(), name), nil
}

func (s *Storage) checkInitInfo() error {
	_, err := os.Stat(s.infoPath())
	if os.IsNotExist(err) {
		return s.dumpInfo(&SnapshotsInfo{})
	}

	return err
}

func (s *Storage) loadInfo() (*SnapshotsInfo, error) {
	data, err := os.ReadFile(s.infoPath())
	if err != nil {
		return nil, fmt.Errorf("read snapshot info err: %w", err)
	}
	info := &SnapshotsInfo{}
	if err = json.Unmarshal(data, info); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot info err: %w", err)
	}

	return info, nil
}

func (s *Storage) dumpInfo(info *SnapshotsInfo) error {
	info.UpdateAt = time.Now()
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return os.WriteFile(s.infoPath(), data, consts.DefaultFilePerm)
}

func (s *Storage) infoPath() string {
	return path.Join(s.rootDir, consts.DefaultInfoFile)
}
