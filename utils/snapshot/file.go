package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// FileStore YAML文件存档，整个文件保存所有车辆
// 说明：Save只更新内存，Close时一次性写出整个文件
type FileStore struct {
	path    string
	records map[int32]Record
	dirty   bool
	mtx     sync.Mutex
}

// NewFileStore 打开存档文件，文件不存在时视为空存档
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, records: make(map[int32]Record)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Save(ctx context.Context, id int32, r Record) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.records[id] = r
	s.dirty = true
	return nil
}

func (s *FileStore) Load(ctx context.Context, id int32) (Record, bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	r, ok := s.records[id]
	return r, ok, nil
}

// Close 有未写出的存档时写出整个文件
func (s *FileStore) Close(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.dirty {
		return nil
	}
	data, err := yaml.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", s.path, err)
	}
	s.dirty = false
	log.Infof("snapshot: wrote %d records to %s", len(s.records), s.path)
	return nil
}
