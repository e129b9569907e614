package pemfile

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/bsoera/econ"
	"github.com/pkg/errors"

	gossh "golang.org/x/crypto/ssh"
)

// KeyParams names the files of the SSH host key pair.
type KeyParams struct {
	KeyPath       string
	SSHPubKeyPath string
}

// InDir returns the default key pair locations inside dir.
func InDir(dir string) KeyParams {
	return KeyParams{
		KeyPath:       filepath.Join(dir, "private.pem"),
		SSHPubKeyPath: filepath.Join(dir, "public.pub"),
	}
}

func (k KeyParams) Generate() error {
	privateKey, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return econ.WithStack(err)
	}
	keyBytes := x509.MarshalPKCS1PrivateKey(privateKey)

	if err := os.MkdirAll(filepath.Dir(k.KeyPath), 0700); err != nil {
		return econ.WithStack(err)
	}
	if err := os.WriteFile(k.KeyPath, pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: keyBytes,
		}),
		0600,
	); err != nil {
		return econ.WithStack(err)
	}

	pub, err := gossh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return econ.WithStack(err)
	}
	if err := os.WriteFile(k.SSHPubKeyPath, gossh.MarshalAuthorizedKey(pub), 0600); err != nil {
		return econ.WithStack(err)
	}
	return nil
}

// Load returns the PEM bytes and signer of the private key, generating the pair
// first if it does not exist. created reports whether it was generated.
func (k KeyParams) Load() (pemBytes []byte, signer gossh.Signer, created bool, err error) {
	if _, err := os.Stat(k.KeyPath); errors.Is(err, os.ErrNotExist) {
		if err := k.Generate(); err != nil {
			return nil, nil, false, err
		}
		created = true
	} else if err != nil {
		return nil, nil, false, econ.WithStack(err)
	}
	if pemBytes, err = os.ReadFile(k.KeyPath); err != nil {
		return nil, nil, false, econ.WithStack(err)
	}
	if signer, err = gossh.ParsePrivateKey(pemBytes); err != nil {
		return nil, nil, false, errors.Wrapf(err, "parsing %q", k.KeyPath)
	}
	return pemBytes, signer, created, nil
}
