// Package artifact holds the deployment package produced by a run and verifies that the
// code stored by the platform is byte-for-byte the code that was built.
package artifact

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/smartcontractkit/beamline/platform"
)

// Digest is a base64 (standard encoding) SHA-256 of the artifact bytes. This is the format
// in which AWS Lambda reports CodeSha256.
type Digest string

// String implements fmt.Stringer.
func (d Digest) String() string {
	return string(d)
}

// DigestOf computes the Digest of b.
func DigestOf(b []byte) Digest {
	sum := sha256.Sum256(b)

	return Digest(base64.StdEncoding.EncodeToString(sum[:]))
}

// ComputeDigest computes the Digest of everything read from r.
func ComputeDigest(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash artifact: %w", err)
	}

	return Digest(base64.StdEncoding.EncodeToString(h.Sum(nil))), nil
}

// Artifact is a packaged deployment bundle. It lives for one run.
type Artifact struct {
	// Name is the file name of the package, e.g. "orders.zip".
	Name string
	// Path is where the package was written on local disk.
	Path string
	// Bytes is the package content.
	Bytes []byte
	// Digest is computed locally from Bytes before upload.
	Digest Digest
	// Location is set once the package has been stored.
	Location platform.CodeLocation
}

// New returns an Artifact for b with its digest computed.
func New(name string, b []byte) *Artifact {
	return &Artifact{
		Name:   name,
		Bytes:  b,
		Digest: DigestOf(b),
	}
}

// Load reads the package at path and computes its digest.
func Load(name, path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	a := New(name, b)
	a.Path = path

	return a, nil
}

// Size returns the package size in bytes.
func (a *Artifact) Size() int {
	return len(a.Bytes)
}

// Verify compares the locally computed digest against the digest reported by the platform.
func (a *Artifact) Verify(reported string) error {
	return Verify(a.Digest, reported)
}

// Discard drops the in-memory package content once the upload has been confirmed.
func (a *Artifact) Discard() {
	a.Bytes = nil
}
