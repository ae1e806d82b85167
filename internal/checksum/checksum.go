// Package checksum implements C3: a 20-byte collision-detecting SHA-1 over
// file contents, compared against a sidecar file to decide "changed".
//
// spec.md §9 explicitly allows substituting the hand-ported SHA1DC/ubc_check
// collision detector from original_source/mace.h for an existing library "provided
// the sidecar format and length are adjusted uniformly" - here they don't need
// adjusting at all, since github.com/pjbgf/sha1cd produces a standard 20-byte
// SHA-1 digest and reports collisions through the same hash.Hash-shaped API
// original_source/mace.h's SHA1DCInit/Update/Final trio exposes.
package checksum

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pjbgf/sha1cd"

	"github.com/macebuild/mace/internal/common"
)

// DigestLen is the raw byte length of both the in-memory digest and the
// on-disk sidecar file (spec.md §4.3/§6).
const DigestLen = 20

// Digest is a 20-byte SHA-1 digest, comparable with ==.
type Digest [DigestLen]byte

// chunkSize matches spec.md §4.3: source files are read in 64 KiB chunks.
const chunkSize = 64 * 1024

// ErrCollisionDetected is returned when the hasher's disturbance-vector
// check matches a known SHA-1 attack pattern. A collision in build inputs
// is treated as a hostile event and always aborts the run (spec.md §4.3).
var ErrCollisionDetected = fmt.Errorf("%w: SHA-1 collision attack detected in file contents", common.ErrIntegrity)

// HashFile computes the collision-detecting SHA-1 digest of the file at
// path, reading it in chunkSize blocks.
func HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: %v", common.ErrFilesystem, err)
	}
	defer f.Close()

	hasher := sha1cd.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return Digest{}, fmt.Errorf("%w: reading %q: %v", common.ErrFilesystem, path, err)
	}

	sum := hasher.Sum(nil)
	var d Digest
	copy(d[:], sum)

	if collider, ok := hasher.(sha1cd.Hash); ok && collider.Collision() {
		return Digest{}, ErrCollisionDetected
	}
	return d, nil
}

// SidecarPath derives <obj_dir>/<source-basename-no-ext>.sha1 from the
// flat object path an object lives at (spec.md §6's "Checksum sidecar"
// layout).
func SidecarPath(objPath string) string {
	return common.ReplaceFileExt(objPath, ".sha1")
}

// ReadSidecar reads a 20-byte digest from path. A missing file means
// "changed" (ok=false, err=nil). A file whose length isn't exactly
// DigestLen is corrupted state and aborts the run per spec.md §4.3.
func ReadSidecar(path string) (digest Digest, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Digest{}, false, nil
	}
	if err != nil {
		return Digest{}, false, fmt.Errorf("%w: %v", common.ErrFilesystem, err)
	}
	if len(data) != DigestLen {
		return Digest{}, false, fmt.Errorf("%w: checksum file %q has length %d, want %d", common.ErrIntegrity, path, len(data), DigestLen)
	}
	copy(digest[:], data)
	return digest, true, nil
}

// WriteSidecar eagerly (re)writes the 20-byte digest file at path,
// creating the parent object directory if needed.
func WriteSidecar(path string, digest Digest) error {
	if err := common.MkdirForFile(path); err != nil {
		return fmt.Errorf("%w: %v", common.ErrFilesystem, err)
	}
	if err := os.WriteFile(path, digest[:], 0o644); err != nil {
		return fmt.Errorf("%w: writing checksum %q: %v", common.ErrFilesystem, path, err)
	}
	return nil
}

// NeedsRecompile implements spec.md §4.3's change policy: a source is
// "changed" iff its current digest differs from the sidecar, OR the
// corresponding object file does not exist, OR alwaysMake is set. The
// sidecar is written eagerly whenever the digest differs from (or
// supersedes) what was stored.
func NeedsRecompile(sourcePath, objPath string, alwaysMake bool) (bool, error) {
	current, err := HashFile(sourcePath)
	if err != nil {
		return false, err
	}

	sidecar := SidecarPath(objPath)
	previous, hadSidecar, err := ReadSidecar(sidecar)
	if err != nil {
		return false, err
	}

	_, statErr := os.Stat(objPath)
	objectMissing := statErr != nil

	changed := !hadSidecar || previous != current
	recompile := changed || objectMissing || alwaysMake

	if changed {
		if err := WriteSidecar(sidecar, current); err != nil {
			return false, err
		}
	}
	return recompile, nil
}
