package store

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"fleetd/internal/component"
	"fleetd/internal/ferrors"
)

// unarchive expands archivePath into destDir according to policy. Entries
// are path-cleaned and rejected if they would escape destDir (archive
// slip), mirroring the defensive filename handling the teacher applies to
// user-controlled names elsewhere (config.Storage.sanitizeFilename).
func unarchive(id component.Identifier, archivePath, destDir string, policy component.UnarchivePolicy) error {
	switch policy {
	case component.UnarchiveNone, "":
		return nil
	case component.UnarchiveTarXZ:
		return unarchiveTarXZ(id, archivePath, destDir)
	case component.UnarchiveZip:
		return unarchiveZip(id, archivePath, destDir)
	default:
		return ferrors.New(ferrors.KindIoError, id.String(), "unknown unarchive policy "+string(policy))
	}
}

func unarchiveTarXZ(id component.Identifier, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "opening archive")
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "reading xz stream")
	}
	tr := tar.NewReader(xr)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "reading tar entry")
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "unsafe tar entry path")
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating directory")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating parent directory")
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode&0o777))
			if err != nil {
				return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating file")
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "writing file")
			}
			out.Close()
		}
	}
}

func unarchiveZip(id component.Identifier, archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "opening zip archive")
	}
	defer r.Close()

	for _, zf := range r.File {
		target, err := safeJoin(destDir, zf.Name)
		if err != nil {
			return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "unsafe zip entry path")
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating directory")
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating parent directory")
		}
		rc, err := zf.Open()
		if err != nil {
			return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "opening zip entry")
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, zf.Mode())
		if err != nil {
			rc.Close()
			return ferrors.Wrap(ferrors.KindIoError, id.String(), err, "creating file")
		}
		_, copyErr := io.Copy(out, rc)
		out.Close()
		rc.Close()
		if copyErr != nil {
			return ferrors.Wrap(ferrors.KindIoError, id.String(), copyErr, "writing file")
		}
	}
	return nil
}

func safeJoin(base, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(base, name))
	if cleaned != base && !strings.HasPrefix(cleaned, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q escapes destination", name)
	}
	return cleaned, nil
}
