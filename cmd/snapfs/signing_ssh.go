package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/snapfs/pkg/vfs"
	"golang.org/x/crypto/ssh"
)

const commitSignaturePrefix = "sshsig-v1"

// newSSHCommitSigner loads an SSH private key and returns a signer that
// produces single-line "sshsig-v1:<format>:<pub>:<sig>" signatures. An
// empty keyPath picks the first default key in ~/.ssh.
func newSSHCommitSigner(keyPath string) (vfs.CommitSigner, string, error) {
	resolvedPath, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", resolvedPath, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", resolvedPath, err)
	}

	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	return func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
		return fmt.Sprintf("%s:%s:%s:%s", commitSignaturePrefix, sig.Format, pubB64, sigB64), nil
	}, resolvedPath, nil
}

// verifySSHSignature checks a signature produced by newSSHCommitSigner.
func verifySSHSignature(signature string, payload []byte) error {
	parts := strings.SplitN(signature, ":", 4)
	if len(parts) != 4 || parts[0] != commitSignaturePrefix {
		return fmt.Errorf("unsupported signature format")
	}
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	return pub.Verify(payload, &ssh.Signature{Format: parts[1], Blob: blob})
}

func resolveSigningKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return expandUserPath(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
	for _, candidate := range candidates {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
