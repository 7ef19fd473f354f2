// Package fs persists frozen snapshots as one JSON document per snapshot ID,
// giving suspended sessions durability across process restarts.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/warden-ai/warden/service/dao"
	"github.com/warden-ai/warden/service/suspension"
)

// Service implements filesystem-backed snapshot storage.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

var _ dao.Service[string, suspension.Snapshot] = (*Service)(nil)

// Save persists a snapshot, overwriting any prior version with the same ID.
func (s *Service) Save(ctx context.Context, snapshot *suspension.Snapshot) error {
	if snapshot == nil {
		return dao.ErrNilEntity
	}
	if snapshot.ID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	URL := s.snapshotURL(snapshot.ID)
	if err = s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save snapshot to %s: %w", URL, err)
	}
	return nil
}

// Load retrieves a snapshot by ID.
func (s *Service) Load(ctx context.Context, id string) (*suspension.Snapshot, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	URL := s.snapshotURL(id)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot %s: %w", id, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", dao.ErrNotFound, id)
	}

	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", URL, err)
	}
	var snapshot suspension.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", id, err)
	}
	return &snapshot, nil
}

// Delete removes a snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	URL := s.snapshotURL(id)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check snapshot %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", dao.ErrNotFound, id)
	}
	if err := s.fs.Delete(ctx, URL); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", URL, err)
	}
	return nil
}

// List returns all stored snapshots. Unreadable files are skipped so one
// corrupt document does not hide the rest.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*suspension.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var snapshots []*suspension.Snapshot
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		var snapshot suspension.Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			continue
		}
		if !matches(&snapshot, parameters) {
			continue
		}
		snapshots = append(snapshots, &snapshot)
	}
	return snapshots, nil
}

func matches(snapshot *suspension.Snapshot, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		switch parameter.Name {
		case "level":
			if string(snapshot.Level) != fmt.Sprint(parameter.Value) {
				return false
			}
		case "capability":
			if snapshot.PendingAction == nil || snapshot.PendingAction.Capability != fmt.Sprint(parameter.Value) {
				return false
			}
		}
	}
	return true
}

func (s *Service) snapshotURL(id string) string {
	return path.Join(s.baseURL, fmt.Sprintf("%s.json", id))
}

// New creates filesystem snapshot storage rooted at baseURL. Any afs-supported
// scheme works (file, mem, s3, gs).
func New(baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	fs := afs.New()
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, baseURL); !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	return &Service{
		baseURL: url.Normalize(baseURL, file.Scheme),
		fs:      fs,
	}, nil
}
