package archive

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/cuemby/pkgforge/pkg/types"
	"github.com/cuemby/pkgforge/pkg/version"
	"github.com/klauspost/compress/flate"
)

// Request describes one upload to validate and re-archive.
type Request struct {
	JobID          string
	PackageID      string
	PackageName    string
	AuthorID       string
	Version        version.Version
	Dependencies   []types.Dependency
	Incompatibles  []types.Dependency
	XPlaneSelector string
	Archive        io.Reader
	ArchiveSize    int64
	AvailableQuota int64
}

// Result is the re-archived, hashed blob ready for BlobStore.
type Result struct {
	Data []byte
	Hash string
	// Size is the on-disk size of the re-archived (compressed) blob.
	Size int64
	// InstalledSize is the re-measured uncompressed size of the
	// validated tree (spec §4.7 step 11), distinct from Size.
	InstalledSize int64
}

// Processor validates and re-archives uploaded package versions.
// TempRoot holds one subdirectory per in-flight job.
type Processor struct {
	TempRoot string
}

// New builds a Processor rooted at tempRoot, which must already exist.
func New(tempRoot string) *Processor {
	return &Processor{TempRoot: tempRoot}
}

// Process runs the full validation and re-archival pipeline (spec
// §4.7). On any validation failure it returns a *FailureError naming
// the VersionStatus the caller should record; on any unexpected I/O
// error it returns a registryerrors.Internal-wrapped error.
func (p *Processor) Process(req Request) (*Result, error) {
	if req.ArchiveSize > types.MaxArchiveUncompressedSize {
		return nil, fail(types.VersionStatusFailedFileTooLarge, "archive exceeds maximum size")
	}

	jobDir, err := os.MkdirTemp(p.TempRoot, req.JobID+"-")
	if err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}
	defer os.RemoveAll(jobDir)

	uploadPath := filepath.Join(jobDir, "upload.zip")
	if err := writeToFile(uploadPath, req.Archive); err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}

	zr, err := zip.OpenReader(uploadPath)
	if err != nil {
		return nil, fail(types.VersionStatusFailedInvalidFileTypes, "archive is not a valid zip file")
	}
	defer zr.Close()

	if err := checkNoMacOSXJunk(zr.File); err != nil {
		return nil, err
	}

	var totalUncompressed int64
	for _, f := range zr.File {
		totalUncompressed += int64(f.UncompressedSize64)
	}
	if totalUncompressed > types.MaxArchiveUncompressedSize {
		return nil, fail(types.VersionStatusFailedFileTooLarge, "uncompressed contents exceed maximum size")
	}
	if totalUncompressed > req.AvailableQuota {
		return nil, fail(types.VersionStatusFailedNotEnoughSpace, "author does not have enough storage quota")
	}

	root := effectiveRoot(zr.File)
	if !hasPackageDir(zr.File, root, req.PackageID) {
		return nil, fail(types.VersionStatusFailedNoFileDir, "archive does not contain a %s directory", req.PackageID)
	}

	packagePrefix := root + req.PackageID + "/"
	if hasManifest(zr.File, packagePrefix) {
		return nil, fail(types.VersionStatusFailedManifestExists, "archive must not already contain manifest.json")
	}

	extractDir := filepath.Join(jobDir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}

	if err := extractValidated(zr.File, packagePrefix, extractDir); err != nil {
		return nil, err
	}

	if err := installDefaultScripts(extractDir); err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}

	if err := writeManifest(extractDir, req); err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}

	installedSize, err := measureInstalledSize(extractDir)
	if err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}

	data, err := rearchive(extractDir)
	if err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}

	sum := sha256.Sum256(data)
	return &Result{
		Data:          data,
		Hash:          hex.EncodeToString(sum[:]),
		Size:          int64(len(data)),
		InstalledSize: installedSize,
	}, nil
}

// measureInstalledSize walks the validated tree (after default scripts
// and manifest.json have been written into it) and sums the
// uncompressed size of every regular file, for VersionRecord.InstalledSize
// (spec §4.7 step 11).
func measureInstalledSize(extractDir string) (int64, error) {
	var total int64
	err := filepath.Walk(extractDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func writeToFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func checkNoMacOSXJunk(files []*zip.File) error {
	for _, f := range files {
		if strings.Contains(f.Name, "__MACOSX") {
			return fail(types.VersionStatusFailedMACOSX, "archive contains __MACOSX metadata")
		}
	}
	return nil
}

// effectiveRoot returns the shared top-level directory prefix of every
// entry, or "" if entries don't share one (spec §4.7 root resolution).
func effectiveRoot(files []*zip.File) string {
	if len(files) == 0 {
		return ""
	}

	var prefix string
	for i, f := range files {
		parts := strings.SplitN(f.Name, "/", 2)
		if len(parts) < 2 || parts[0] == "" {
			return ""
		}
		top := parts[0] + "/"
		if i == 0 {
			prefix = top
		} else if prefix != top {
			return ""
		}
	}
	return prefix
}

func hasPackageDir(files []*zip.File, root, packageID string) bool {
	want := root + packageID + "/"
	for _, f := range files {
		if f.Name == want || strings.HasPrefix(f.Name, want) {
			return true
		}
	}
	return false
}

func hasManifest(files []*zip.File, packagePrefix string) bool {
	want := packagePrefix + manifestName
	for _, f := range files {
		if f.Name == want {
			return true
		}
	}
	return false
}

// extractValidated walks every entry under packagePrefix, rejects
// symlinks and unexpected executable bits, skips macOS .DS_Store
// litter, and writes the rest under dest.
func extractValidated(files []*zip.File, packagePrefix, dest string) error {
	for _, f := range files {
		if !strings.HasPrefix(f.Name, packagePrefix) {
			continue
		}
		rel := strings.TrimPrefix(f.Name, packagePrefix)
		if rel == "" {
			continue
		}
		base := filepath.Base(rel)
		if base == ".DS_Store" {
			continue
		}

		mode := f.Mode()
		if mode&os.ModeSymlink != 0 {
			return fail(types.VersionStatusFailedInvalidFileTypes, "archive contains a symlink: %s", rel)
		}

		destPath := filepath.Join(dest, rel)
		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return registryerrors.Internal.Wrap(err)
			}
			continue
		}

		if mode.Perm()&0o111 != 0 && !isAllowedExecutable(base) {
			return fail(types.VersionStatusFailedInvalidFileTypes, "archive contains an unexpected executable: %s", rel)
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return registryerrors.Internal.Wrap(err)
		}
		if err := extractEntry(f, destPath); err != nil {
			return registryerrors.Internal.Wrap(err)
		}
	}
	return nil
}

func isAllowedExecutable(name string) bool {
	switch name {
	case defaultInstallScript, defaultUninstallScript, defaultUpgradeScript:
		return true
	default:
		return strings.HasSuffix(name, ".ska")
	}
}

func extractEntry(f *zip.File, destPath string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode().Perm()|0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

func installDefaultScripts(extractDir string) error {
	for _, name := range []string{defaultInstallScript, defaultUninstallScript, defaultUpgradeScript} {
		path := filepath.Join(extractDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(defaultScriptBody), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func writeManifest(extractDir string, req Request) error {
	m := manifest{
		ManifestVersion:   manifestVersion,
		PackageName:       req.PackageName,
		PackageID:         req.PackageID,
		PackageVersion:    req.Version.Format(),
		AuthorID:          req.AuthorID,
		Dependencies:      toManifestPairs(req.Dependencies),
		Incompatibilities: toManifestPairs(req.Incompatibles),
		XPSelection:       req.XPlaneSelector,
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(extractDir, manifestName), data, 0o644)
}

// rearchive walks extractDir and writes a fresh zip to memory, using
// klauspost/compress's flate implementation as the deflate compressor.
func rearchive(extractDir string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	err := filepath.Walk(extractDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(extractDir, path)
		if err != nil {
			return err
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
