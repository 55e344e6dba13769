package delta

import (
	"os"
	"path/filepath"
	"time"

	"github.com/deploysync/deploysync/internal/jsonstore"
)

// SignatureCache holds the prior known signature of every tracked file in a
// project. One cache per project, persisted as a single JSON document.
type SignatureCache struct {
	ProjectID  string                    `json:"project_id"`
	Signatures map[string]*FileSignature `json:"signatures"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

func NewSignatureCache(projectID string) *SignatureCache {
	return &SignatureCache{
		ProjectID:  projectID,
		Signatures: make(map[string]*FileSignature),
		UpdatedAt:  time.Now().UTC(),
	}
}

func (c *SignatureCache) Get(rel string) *FileSignature {
	return c.Signatures[rel]
}

func (c *SignatureCache) Set(sig *FileSignature) {
	c.Signatures[sig.Path] = sig
	c.UpdatedAt = time.Now().UTC()
}

func (c *SignatureCache) Remove(rel string) {
	delete(c.Signatures, rel)
	c.UpdatedAt = time.Now().UTC()
}

// CacheStore persists signature caches under {dir}/{projectID}.json.
type CacheStore struct {
	dir string
}

func NewCacheStore(dir string) *CacheStore {
	return &CacheStore{dir: dir}
}

func (s *CacheStore) Path(projectID string) string {
	return filepath.Join(s.dir, projectID+".json")
}

// Load returns the project's cache, or a fresh empty one if none was persisted.
func (s *CacheStore) Load(projectID string) (*SignatureCache, error) {
	cache := NewSignatureCache(projectID)
	ok, err := jsonstore.Load(s.Path(projectID), cache)
	if err != nil {
		return nil, err
	}
	if ok && cache.Signatures == nil {
		cache.Signatures = make(map[string]*FileSignature)
	}
	return cache, nil
}

func (s *CacheStore) Save(cache *SignatureCache) error {
	return jsonstore.Save(s.Path(cache.ProjectID), cache)
}

// Clear removes the persisted cache; the next sync sees every file as new.
func (s *CacheStore) Clear(projectID string) error {
	err := os.Remove(s.Path(projectID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
