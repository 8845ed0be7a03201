// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package tlscert generates the self-signed certificate the bot serves its
// webhook with, and inspects the result.
package tlscert

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default file names. The bot reads its key pair from these files in its
// working directory.
const (
	CertFile = "cert.pem"
	KeyFile  = "key.pem"
)

// Options configure [Generate].
type Options struct {
	// Openssl is the path to the openssl binary.
	Openssl string
	// CommonName is the certificate subject CN. Defaults to "localhost".
	CommonName string
	// Dir is where the key pair is written.
	Dir string
	// Bits is the RSA key size. Defaults to 4096.
	Bits int
	// Days is the validity period. Defaults to 365.
	Days int
	// Env is the environment openssl runs with. If nil, it inherits the
	// environment of the current process.
	Env []string
}

// waitDelay is how long openssl gets to exit after being interrupted
// before it is killed.
const waitDelay = 10 * time.Second

// Pair is a generated key pair.
type Pair struct {
	CertPath string
	KeyPath  string
}

// Generate creates a self-signed certificate and its private key in
// opts.Dir, silently replacing existing files. openssl writes to temporary
// files that are renamed into place only once it succeeds, so an
// interrupted run leaves the previous pair untouched.
func Generate(ctx context.Context, opts Options) (Pair, error) {
	if opts.Openssl == "" {
		return Pair{}, errors.New("tlscert: path to openssl is required")
	}
	if opts.CommonName == "" {
		opts.CommonName = "localhost"
	}
	if opts.Bits == 0 {
		opts.Bits = 4096
	}
	if opts.Days == 0 {
		opts.Days = 365
	}
	if strings.ContainsAny(opts.CommonName, "/\n") {
		return Pair{}, fmt.Errorf("tlscert: invalid common name %q", opts.CommonName)
	}

	p := Pair{
		CertPath: filepath.Join(opts.Dir, CertFile),
		KeyPath:  filepath.Join(opts.Dir, KeyFile),
	}
	tmp := Pair{
		CertPath: tempName(p.CertPath),
		KeyPath:  tempName(p.KeyPath),
	}
	defer os.Remove(tmp.CertPath)
	defer os.Remove(tmp.KeyPath)
	// openssl keeps the mode of a file it overwrites, so the key is never
	// readable by others.
	if err := os.WriteFile(tmp.KeyPath, nil, 0o600); err != nil {
		return Pair{}, fmt.Errorf("tlscert: %w", err)
	}

	cmd := exec.CommandContext(ctx, opts.Openssl,
		"req", "-x509",
		"-newkey", "rsa:"+strconv.Itoa(opts.Bits),
		"-nodes",
		"-keyout", tmp.KeyPath,
		"-out", tmp.CertPath,
		"-days", strconv.Itoa(opts.Days),
		"-subj", "/CN="+opts.CommonName,
	)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = waitDelay
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Pair{}, fmt.Errorf("tlscert: openssl interrupted: %w", ctxErr)
		}
		return Pair{}, fmt.Errorf("tlscert: openssl failed: %w: %s", err, bytes.TrimSpace(out))
	}

	if err := os.Chmod(tmp.KeyPath, 0o600); err != nil {
		return Pair{}, fmt.Errorf("tlscert: %w", err)
	}
	if err := os.Rename(tmp.KeyPath, p.KeyPath); err != nil {
		return Pair{}, fmt.Errorf("tlscert: %w", err)
	}
	if err := os.Rename(tmp.CertPath, p.CertPath); err != nil {
		return Pair{}, fmt.Errorf("tlscert: %w", err)
	}
	return p, nil
}

func tempName(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
}

// Info describes a certificate.
type Info struct {
	CommonName string
	NotBefore  time.Time
	NotAfter   time.Time
	KeyBits    int // zero for non-RSA keys
}

func (i Info) String() string {
	s := fmt.Sprintf("CN=%s, valid %s to %s", i.CommonName,
		i.NotBefore.UTC().Format(time.DateOnly), i.NotAfter.UTC().Format(time.DateOnly))
	if i.KeyBits != 0 {
		s += fmt.Sprintf(", RSA %d", i.KeyBits)
	}
	return s
}

// Inspect reads the first PEM certificate from path.
func Inspect(path string) (Info, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	for {
		var block *pem.Block
		block, b = pem.Decode(b)
		if block == nil {
			return Info{}, fmt.Errorf("tlscert: no certificate in %s", path)
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return Info{}, fmt.Errorf("tlscert: parsing %s: %w", path, err)
		}
		info := Info{
			CommonName: cert.Subject.CommonName,
			NotBefore:  cert.NotBefore,
			NotAfter:   cert.NotAfter,
		}
		if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
			info.KeyBits = pub.N.BitLen()
		}
		return info, nil
	}
}
