// Package firmware derives firmware filenames and resolves them against a
// read-only image repository.
package firmware

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
)

// Repository looks firmware images up by exact filename.
type Repository interface {
	Open(name string) ([]byte, error)
}

// FSRepository serves images from an fs.FS.
type FSRepository struct {
	fsys fs.FS
}

// NewFS creates a repository over fsys.
func NewFS(fsys fs.FS) *FSRepository {
	return &FSRepository{fsys: fsys}
}

// NewDir creates a repository over a host directory.
func NewDir(dir string) *FSRepository {
	return NewFS(os.DirFS(dir))
}

// Open reads name. A missing file is a FirmwareNotFound failure.
func (r *FSRepository) Open(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, protocol.Errorf(protocol.KindFirmwareNotFound, "open firmware", "invalid name %q", name)
	}
	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, protocol.Wrap(protocol.KindFirmwareNotFound, "open firmware", err)
		}
		return nil, err
	}
	return data, nil
}

// Chain tries each repository in order and returns the first hit.
type Chain []Repository

// Open implements Repository.
func (c Chain) Open(name string) ([]byte, error) {
	err := error(protocol.Errorf(protocol.KindFirmwareNotFound, "open firmware", "%s: no repository", name))
	for _, r := range c {
		data, rerr := r.Open(name)
		if rerr == nil {
			return data, nil
		}
		err = rerr
		if !errors.Is(rerr, protocol.ErrFirmwareNotFound) {
			return nil, rerr
		}
	}
	return nil, err
}

// Has reports whether repo serves name.
func Has(repo Repository, name string) bool {
	_, err := repo.Open(name)
	return err == nil
}

// Blob is a firmware image owned by the step that loaded it.
type Blob struct {
	Name string
	Data []byte
}

// Release drops the image data.
func (b *Blob) Release() {
	if b != nil {
		b.Data = nil
	}
}

// Selector resolves derived filenames against a repository.
type Selector struct {
	repo   Repository
	logger *slog.Logger
}

// NewSelector creates a selector over repo.
func NewSelector(repo Repository, logger *slog.Logger) *Selector {
	return &Selector{repo: repo, logger: logging.For(logger, logging.ComponentProvision)}
}

// Load fetches name. The repository's bytes are copied so the caller may
// patch the image in place.
func (s *Selector) Load(name string) (*Blob, error) {
	data, err := s.repo.Open(name)
	if err != nil {
		s.logger.Error("firmware lookup failed", "name", name, "err", err)
		return nil, err
	}
	s.logger.Info("firmware selected", "name", name, "size", len(data))
	return &Blob{Name: name, Data: append([]byte(nil), data...)}, nil
}
