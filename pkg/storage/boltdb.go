package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/cuemby/pkgforge/pkg/version"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketAuthors  = []byte("authors")
	bucketPackages = []byte("packages")
)

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) a bbolt database under
// dataDir and ensures its buckets exist.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "pkgforge.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAuthors, bucketPackages} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Authors ---

func (s *BoltStore) CreateAuthor(author *types.Author) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		if b.Get([]byte(author.ID)) != nil {
			return registryerrors.ErrDuplicateAccount
		}
		if existing := findAuthor(b, func(a *types.Author) bool {
			return strings.EqualFold(a.Name, author.Name)
		}); existing != nil {
			return registryerrors.ErrDuplicateAccount
		}
		return putJSON(b, author.ID, author)
	})
}

func (s *BoltStore) GetAuthor(id string) (*types.Author, error) {
	var author types.Author
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		data := b.Get([]byte(id))
		if data == nil {
			return registryerrors.ErrNoSuchAccount
		}
		return json.Unmarshal(data, &author)
	})
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (s *BoltStore) GetAuthorByName(name string) (*types.Author, error) {
	var found *types.Author
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		found = findAuthor(b, func(a *types.Author) bool {
			return strings.EqualFold(a.Name, name)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, registryerrors.ErrNoSuchAccount
	}
	return found, nil
}

func (s *BoltStore) GetAuthorByEmail(email string) (*types.Author, error) {
	email = strings.ToLower(email)
	var found *types.Author
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		found = findAuthor(b, func(a *types.Author) bool {
			return a.Email == email
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, registryerrors.ErrNoSuchAccount
	}
	return found, nil
}

func (s *BoltStore) ListAuthors() ([]*types.Author, error) {
	var authors []*types.Author
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		return b.ForEach(func(k, v []byte) error {
			var a types.Author
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			authors = append(authors, &a)
			return nil
		})
	})
	return authors, err
}

func (s *BoltStore) UpdateAuthor(author *types.Author) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		if b.Get([]byte(author.ID)) == nil {
			return registryerrors.ErrNoSuchAccount
		}
		author.UpdatedAt = time.Now()
		return putJSON(b, author.ID, author)
	})
}

func (s *BoltStore) TryConsumeStorage(authorID string, amount int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		data := b.Get([]byte(authorID))
		if data == nil {
			return registryerrors.ErrNoSuchAccount
		}
		var author types.Author
		if err := json.Unmarshal(data, &author); err != nil {
			return err
		}
		if author.UsedStorage+amount > author.TotalStorage {
			return registryerrors.ErrQuotaExceeded
		}
		author.UsedStorage += amount
		author.UpdatedAt = time.Now()
		return putJSON(b, author.ID, &author)
	})
}

func (s *BoltStore) FreeStorage(authorID string, amount int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		data := b.Get([]byte(authorID))
		if data == nil {
			return registryerrors.ErrNoSuchAccount
		}
		var author types.Author
		if err := json.Unmarshal(data, &author); err != nil {
			return err
		}
		author.UsedStorage -= amount
		if author.UsedStorage < 0 {
			author.UsedStorage = 0
		}
		author.UpdatedAt = time.Now()
		return putJSON(b, author.ID, &author)
	})
}

func (s *BoltStore) RecordNameChange(authorID, newName string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAuthors)
		data := b.Get([]byte(authorID))
		if data == nil {
			return registryerrors.ErrNoSuchAccount
		}
		var author types.Author
		if err := json.Unmarshal(data, &author); err != nil {
			return err
		}

		if existing := findAuthor(b, func(a *types.Author) bool {
			return a.ID != authorID && strings.EqualFold(a.Name, newName)
		}); existing != nil {
			return registryerrors.ErrDuplicateAccount
		}

		if !author.LastNameChange.IsZero() && at.Sub(author.LastNameChange) < types.NameChangeCooldownDays*24*time.Hour {
			return registryerrors.ErrNameChangeTooSoon
		}

		author.Name = newName
		author.LastNameChange = at
		author.UpdatedAt = at
		return putJSON(b, author.ID, &author)
	})
}

func findAuthor(b *bolt.Bucket, match func(*types.Author) bool) *types.Author {
	var found *types.Author
	_ = b.ForEach(func(k, v []byte) error {
		if found != nil {
			return nil
		}
		var a types.Author
		if err := json.Unmarshal(v, &a); err != nil {
			return nil
		}
		if match(&a) {
			found = &a
		}
		return nil
	})
	return found
}

// --- Packages ---

func (s *BoltStore) CreatePackage(pkg *types.Package) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		if b.Get([]byte(pkg.ID)) != nil {
			return registryerrors.ErrDuplicatePackage
		}
		if existing := findPackage(b, func(p *types.Package) bool {
			return p.AuthorID == pkg.AuthorID && p.Name == pkg.Name
		}); existing != nil {
			return registryerrors.ErrDuplicatePackage
		}
		return putJSON(b, pkg.ID, pkg)
	})
}

func (s *BoltStore) GetPackage(id string) (*types.Package, error) {
	var pkg types.Package
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		data := b.Get([]byte(id))
		if data == nil {
			return registryerrors.ErrNoSuchPackage
		}
		return json.Unmarshal(data, &pkg)
	})
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *BoltStore) GetPackageByAuthorAndName(authorID, name string) (*types.Package, error) {
	var found *types.Package
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		found = findPackage(b, func(p *types.Package) bool {
			return p.AuthorID == authorID && p.Name == name
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, registryerrors.ErrNoSuchPackage
	}
	return found, nil
}

func (s *BoltStore) ListPackages() ([]*types.Package, error) {
	var pkgs []*types.Package
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		return b.ForEach(func(k, v []byte) error {
			var p types.Package
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			pkgs = append(pkgs, &p)
			return nil
		})
	})
	return pkgs, err
}

func (s *BoltStore) ListPackagesByAuthor(authorID string) ([]*types.Package, error) {
	all, err := s.ListPackages()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Package
	for _, p := range all {
		if p.AuthorID == authorID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *BoltStore) UpdatePackage(pkg *types.Package) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		if b.Get([]byte(pkg.ID)) == nil {
			return registryerrors.ErrNoSuchPackage
		}
		pkg.UpdatedAt = time.Now()
		return putJSON(b, pkg.ID, pkg)
	})
}

func (s *BoltStore) InsertVersion(packageID string, record *types.VersionRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		data := b.Get([]byte(packageID))
		if data == nil {
			return registryerrors.ErrNoSuchPackage
		}
		var pkg types.Package
		if err := json.Unmarshal(data, &pkg); err != nil {
			return err
		}

		for _, existing := range pkg.Versions {
			if version.Equal(existing.Version, record.Version) {
				return registryerrors.ErrVersionExists
			}
		}

		pkg.Versions = append(pkg.Versions, record)
		pkg.UpdatedAt = time.Now()
		return putJSON(b, pkg.ID, &pkg)
	})
}

func (s *BoltStore) GetVersion(packageID string, v version.Version) (*types.VersionRecord, error) {
	pkg, err := s.GetPackage(packageID)
	if err != nil {
		return nil, err
	}
	for _, vr := range pkg.Versions {
		if version.Equal(vr.Version, v) {
			return vr, nil
		}
	}
	return nil, registryerrors.ErrNoSuchVersion
}

// loadVersionForUpdate is the shared lookup every validated mutation
// below starts from: load the owning Package, find the target
// VersionRecord, hand both back for the caller to mutate and persist.
func loadVersionForUpdate(b *bolt.Bucket, packageID string, v version.Version) (*types.Package, *types.VersionRecord, error) {
	data := b.Get([]byte(packageID))
	if data == nil {
		return nil, nil, registryerrors.ErrNoSuchPackage
	}
	var pkg types.Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, nil, err
	}

	for _, vr := range pkg.Versions {
		if version.Equal(vr.Version, v) {
			return &pkg, vr, nil
		}
	}
	return nil, nil, registryerrors.ErrNoSuchVersion
}

func (s *BoltStore) UpdateStatus(packageID string, v version.Version, newStatus types.VersionStatus, errMsg string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		pkg, target, err := loadVersionForUpdate(b, packageID, v)
		if err != nil {
			return err
		}

		if !target.Status.CanTransitionTo(newStatus) {
			return registryerrors.ErrInvalidTransition
		}

		target.Status = newStatus
		target.ErrorMessage = errMsg
		if newStatus.IsFailure() {
			target.Location = types.NotStored
			target.ConsumedStorage = false
		}
		target.UpdatedAt = time.Now()
		pkg.UpdatedAt = time.Now()
		return putJSON(b, pkg.ID, pkg)
	})
}

func (s *BoltStore) ResolveVersion(packageID string, v version.Version, hash, location, privateKey string, size, installedSize int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		pkg, target, err := loadVersionForUpdate(b, packageID, v)
		if err != nil {
			return err
		}

		if target.Status != types.VersionStatusProcessing {
			return registryerrors.ErrNotProcessing
		}

		target.Status = types.VersionStatusProcessed
		target.Hash = hash
		target.Location = location
		target.PrivateKey = privateKey
		target.StoredSize = size
		target.InstalledSize = installedSize
		target.ConsumedStorage = true
		now := time.Now()
		target.ProcessedAt = now
		target.UpdatedAt = now
		pkg.UpdatedAt = now
		return putJSON(b, pkg.ID, pkg)
	})
}

func (s *BoltStore) RetryVersion(packageID string, v version.Version) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPackages)
		pkg, target, err := loadVersionForUpdate(b, packageID, v)
		if err != nil {
			return err
		}

		if !target.Status.CanTransitionTo(types.VersionStatusProcessing) {
			return registryerrors.ErrInvalidTransition
		}

		target.Status = types.VersionStatusProcessing
		target.ErrorMessage = ""
		target.UpdatedAt = time.Now()
		pkg.UpdatedAt = time.Now()
		return putJSON(b, pkg.ID, pkg)
	})
}

func (s *BoltStore) ListProcessedPublic() ([]*types.VersionRecord, error) {
	pkgs, err := s.ListPackages()
	if err != nil {
		return nil, err
	}
	var out []*types.VersionRecord
	for _, pkg := range pkgs {
		for _, vr := range pkg.Versions {
			if vr.Status == types.VersionStatusProcessed && vr.IsPublic {
				out = append(out, vr)
			}
		}
	}
	return out, nil
}

func findPackage(b *bolt.Bucket, match func(*types.Package) bool) *types.Package {
	var found *types.Package
	_ = b.ForEach(func(k, v []byte) error {
		if found != nil {
			return nil
		}
		var p types.Package
		if err := json.Unmarshal(v, &p); err != nil {
			return nil
		}
		if match(&p) {
			found = &p
		}
		return nil
	})
	return found
}

func putJSON(b *bolt.Bucket, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}
