package ingestionapi

import (
	"context"
	"io"
	"time"

	"github.com/cuemby/pkgforge/pkg/admission"
	"github.com/cuemby/pkgforge/pkg/authz"
	"github.com/cuemby/pkgforge/pkg/catalog"
	"github.com/cuemby/pkgforge/pkg/events"
	"github.com/cuemby/pkgforge/pkg/ingestion"
	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/cuemby/pkgforge/pkg/storage"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/cuemby/pkgforge/pkg/version"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// uploadDeadline bounds total ingestion time (spec §5: "an
// implementation-chosen upper bound (e.g., 1h) for total ingestion
// time; exceeding it is equivalent to aborted").
const uploadDeadline = time.Hour

// Service is the registry's boundary: every externally triggered
// operation runs its admission checks here before touching storage or
// handing work to the ingestion pipeline.
type Service struct {
	store    storage.Store
	guard    *admission.Guard
	pipeline *ingestion.Pipeline
	catalog  *catalog.Snapshotter
	events   *events.Broker
}

// New builds a Service wiring the registry's collaborators together.
func New(store storage.Store, guard *admission.Guard, pipeline *ingestion.Pipeline, cat *catalog.Snapshotter) *Service {
	return &Service{store: store, guard: guard, pipeline: pipeline, catalog: cat}
}

// WithEvents attaches an event broker; CreatePackage publishes
// events.EventPackageCreated to it. Optional — nil is a no-op.
func (s *Service) WithEvents(broker *events.Broker) *Service {
	s.events = broker
	return s
}

// CreatePackageRequest names a new package an author wants to own.
type CreatePackageRequest struct {
	AuthorID    string
	Name        string
	Description string
	Type        types.PackageType
}

// CreatePackage registers a new Package owned by req.AuthorID.
func (s *Service) CreatePackage(ctx context.Context, auth *authz.Authorized, req CreatePackageRequest) (*types.Package, error) {
	if err := s.guard.CheckRateLimit("create_package", req.AuthorID); err != nil {
		return nil, err
	}
	if err := admission.ValidatePackageID(req.Name); err != nil {
		return nil, err
	}
	if err := admission.ValidatePackageType(req.Type); err != nil {
		return nil, err
	}
	if err := admission.ValidateDescription(req.Description); err != nil {
		return nil, err
	}

	pkg := &types.Package{
		ID:          uuid.NewString(),
		AuthorID:    req.AuthorID,
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
	}
	if err := s.store.CreatePackage(pkg); err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.Publish(&events.Event{
			Type:     events.EventPackageCreated,
			Message:  "package registered",
			Metadata: map[string]string{"package_id": pkg.ID, "author_id": pkg.AuthorID},
		})
	}
	return pkg, nil
}

// UploadVersionRequest is one version upload.
type UploadVersionRequest struct {
	AuthorID       string
	PackageID      string
	Version        string
	Archive        io.Reader
	ArchiveSize    int64
	Dependencies   []types.Dependency
	Incompatibles  []types.Dependency
	XPlaneSelector string
	IsPublic       bool
	// IsStored requests blob retention for a private version (spec §3:
	// IsPublic implies storage regardless of this field).
	IsStored bool
}

// UploadVersion checks permission, ownership-equivalent scoping and
// quota-relevant fields, then hands the job to the ingestion pipeline.
// It returns once the pipeline reaches a terminal state.
func (s *Service) UploadVersion(ctx context.Context, auth *authz.Authorized, req UploadVersionRequest) (*types.VersionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadDeadline)
	defer cancel()

	if err := s.guard.CheckRateLimit("upload_version", req.AuthorID); err != nil {
		return nil, err
	}

	pkg, err := s.store.GetPackage(req.PackageID)
	if err != nil {
		return nil, err
	}

	bit := types.PermUploadVersionAnyPackage
	if !auth.Token.Permissions.Has(bit) {
		bit = types.PermUploadVersionSpecificPackages
	}
	if err := s.guard.CheckPermission(auth, bit, pkg.ID); err != nil {
		return nil, err
	}

	v, ok := version.Parse(req.Version)
	if !ok {
		return nil, registryerrors.Validation.New("invalid version: %s", req.Version)
	}

	job := ingestion.Job{
		JobID:          uuid.NewString(),
		AuthorID:       pkg.AuthorID,
		PackageID:      pkg.ID,
		PackageName:    pkg.Name,
		Version:        v,
		Archive:        req.Archive,
		ArchiveSize:    req.ArchiveSize,
		Dependencies:   req.Dependencies,
		Incompatibles:  req.Incompatibles,
		XPlaneSelector: req.XPlaneSelector,
		IsPublic:       req.IsPublic,
		IsStored:       req.IsStored,
	}

	if err := s.pipeline.Submit(ctx, job); err != nil {
		return s.store.GetVersion(pkg.ID, v)
	}
	return s.store.GetVersion(pkg.ID, v)
}

// RetryVersion resubmits a version currently in a Failed* status with
// a freshly supplied archive.
func (s *Service) RetryVersion(ctx context.Context, auth *authz.Authorized, req UploadVersionRequest) (*types.VersionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadDeadline)
	defer cancel()

	if err := s.guard.CheckRateLimit("retry_version", req.AuthorID); err != nil {
		return nil, err
	}

	pkg, err := s.store.GetPackage(req.PackageID)
	if err != nil {
		return nil, err
	}

	bit := types.PermUploadVersionAnyPackage
	if !auth.Token.Permissions.Has(bit) {
		bit = types.PermUploadVersionSpecificPackages
	}
	if err := s.guard.CheckPermission(auth, bit, pkg.ID); err != nil {
		return nil, err
	}

	v, ok := version.Parse(req.Version)
	if !ok {
		return nil, registryerrors.Validation.New("invalid version: %s", req.Version)
	}

	job := ingestion.Job{
		JobID:          uuid.NewString(),
		PackageID:      pkg.ID,
		PackageName:    pkg.Name,
		Version:        v,
		Archive:        req.Archive,
		ArchiveSize:    req.ArchiveSize,
		Dependencies:   req.Dependencies,
		Incompatibles:  req.Incompatibles,
		XPlaneSelector: req.XPlaneSelector,
		IsPublic:       req.IsPublic,
		IsStored:       req.IsStored,
	}

	if err := s.pipeline.Retry(ctx, pkg.AuthorID, job); err != nil {
		return s.store.GetVersion(pkg.ID, v)
	}
	return s.store.GetVersion(pkg.ID, v)
}

// UpdateDescriptionRequest updates a Package's description text.
type UpdateDescriptionRequest struct {
	PackageID   string
	Description string
}

// UpdateDescription updates a package's description, enforcing the
// any/specific permission split.
func (s *Service) UpdateDescription(ctx context.Context, auth *authz.Authorized, req UpdateDescriptionRequest) (*types.Package, error) {
	if err := s.guard.CheckRateLimit("update_description", auth.Author.ID); err != nil {
		return nil, err
	}
	if err := admission.ValidateDescription(req.Description); err != nil {
		return nil, err
	}

	pkg, err := s.store.GetPackage(req.PackageID)
	if err != nil {
		return nil, err
	}

	bit := types.PermUpdateDescriptionAnyPackage
	if !auth.Token.Permissions.Has(bit) {
		bit = types.PermUpdateDescriptionSpecificPackages
	}
	if err := s.guard.CheckPermission(auth, bit, pkg.ID); err != nil {
		return nil, err
	}

	pkg.Description = req.Description
	if err := s.store.UpdatePackage(pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// GetCatalog returns the most recently generated public catalog
// snapshot.
func (s *Service) GetCatalog() *catalog.Snapshot {
	return s.catalog.Latest()
}

// ChangePasswordRequest carries an author's credential-change request.
// CurrentPassword is verified against the stored hash before NewPassword
// takes effect.
type ChangePasswordRequest struct {
	AuthorID        string
	CurrentPassword string
	NewPassword     string
}

// ChangePassword verifies the author's current password, stores a
// fresh bcrypt hash of NewPassword, and rotates Author.Session. That
// rotation invalidates every bearer token issued before this call
// (spec §3 invariant 5, §8): "after any password or email change on
// author A, no previously issued token for A verifies."
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if err := s.guard.CheckRateLimit("change_password", req.AuthorID); err != nil {
		return err
	}
	if len(req.NewPassword) < 8 {
		return registryerrors.Validation.New("password must be at least 8 characters")
	}

	author, err := s.store.GetAuthor(req.AuthorID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(author.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return registryerrors.Unauthorized.New("current password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return registryerrors.Internal.Wrap(err)
	}

	return s.rotateCredential(author, func() {
		author.PasswordHash = string(newHash)
	})
}

// ChangeEmailRequest carries an author's email-change request.
type ChangeEmailRequest struct {
	AuthorID string
	NewEmail string
}

// ChangeEmail updates the author's email and rotates Author.Session,
// same invalidation guarantee as ChangePassword (spec §3 invariant 5).
func (s *Service) ChangeEmail(ctx context.Context, req ChangeEmailRequest) error {
	if err := s.guard.CheckRateLimit("change_email", req.AuthorID); err != nil {
		return err
	}
	if err := admission.ValidateEmail(req.NewEmail); err != nil {
		return err
	}

	author, err := s.store.GetAuthor(req.AuthorID)
	if err != nil {
		return err
	}

	return s.rotateCredential(author, func() {
		author.Email = req.NewEmail
	})
}

// rotateCredential applies mutate to author, rotates its Session to a
// fresh value, and persists both in one UpdateAuthor write.
func (s *Service) rotateCredential(author *types.Author, mutate func()) error {
	mutate()

	session, err := authz.NewAuthorSession()
	if err != nil {
		return registryerrors.Internal.Wrap(err)
	}
	author.Session = session

	return s.store.UpdateAuthor(author)
}
