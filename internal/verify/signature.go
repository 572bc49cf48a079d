package verify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/jedisct1/go-minisign"

	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
)

// SignatureFormat identifies how a detached signature is encoded.
type SignatureFormat string

const (
	FormatOpenPGP  SignatureFormat = "openpgp"
	FormatMinisign SignatureFormat = "minisign"
)

// ErrSignatureKeyRequired is returned when a signature is given without a key.
var ErrSignatureKeyRequired = errors.New("a public key is required to verify a signature")

// DetectSignatureFormat picks the format from the signature file name.
func DetectSignatureFormat(sigPath string) SignatureFormat {
	if strings.EqualFold(filepath.Ext(sigPath), ".minisig") {
		return FormatMinisign
	}
	return FormatOpenPGP
}

// Signature verifies path against the detached signature at sigPath using
// the public key at keyPath. An empty sigPath disables the check. Every
// failure is FatalInput.
func (v *Verifier) Signature(path, sigPath, keyPath string) error {
	if sigPath == "" {
		return nil
	}
	if keyPath == "" {
		return lifecycle.Input("signature", ErrSignatureKeyRequired)
	}

	format := DetectSignatureFormat(sigPath)
	var err error
	switch format {
	case FormatMinisign:
		err = verifyMinisign(path, sigPath, keyPath)
	default:
		err = verifyOpenPGP(path, sigPath, keyPath)
	}
	if err != nil {
		return lifecycle.Input("signature", err)
	}

	v.logger.Info("signature verified", "format", string(format), "signature", sigPath)
	return nil
}

func verifyMinisign(path, sigPath, keyPath string) error {
	pubKey, err := minisign.NewPublicKeyFromFile(keyPath)
	if err != nil {
		return fmt.Errorf("read minisign pubkey: %w", err)
	}

	sig, err := minisign.NewSignatureFromFile(sigPath)
	if err != nil {
		return fmt.Errorf("read minisign signature: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	valid, err := pubKey.Verify(data, sig)
	if err != nil {
		return fmt.Errorf("minisign: verification error: %w", err)
	}
	if !valid {
		return fmt.Errorf("minisign: signature verification failed")
	}
	return nil
}

func verifyOpenPGP(path, sigPath, keyPath string) error {
	keyring, err := loadKeyring(keyPath)
	if err != nil {
		return err
	}

	artifact, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer artifact.Close()

	sigFile, err := os.Open(sigPath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	// Armored first, then binary.
	_, err = openpgp.CheckArmoredDetachedSignature(keyring, artifact, sigFile, nil)
	if err != nil {
		if _, seekErr := artifact.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind artifact: %w", seekErr)
		}
		if _, seekErr := sigFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind signature: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, artifact, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

func loadKeyring(keyPath string) (openpgp.EntityList, error) {
	keyringFile, err := os.Open(keyPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		if _, seekErr := keyringFile.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}
