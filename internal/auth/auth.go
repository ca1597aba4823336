// Package auth locates the Gemini API key and classifies Gemini API failures.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".photo-enhance"
	credentialFile = "credentials.gpg"

	// EnvAPIKey is the environment variable holding the Gemini API key.
	EnvAPIKey = "GEMINI_API_KEY"
)

// ErrNoAPIKey is returned by GetAPIKey when no source yields a key.
var ErrNoAPIKey = errors.New("API key not found. Set GEMINI_API_KEY or store it GPG-encrypted in ~/" + credentialDir + "/" + credentialFile)

// GetAPIKey retrieves the Gemini API key.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. GPG-encrypted file at ~/.photo-enhance/credentials.gpg
func GetAPIKey() (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromGPG()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from GPG encrypted file")
		return key, nil
	}

	log.Debug().Err(err).Msg("No GPG credentials available")
	return "", ErrNoAPIKey
}

func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("GPG credentials file not found at %s", credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")

	args := []string{"--decrypt", "--quiet"}
	if passphrasePath, ok := passphraseFile(); ok {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
	}
	args = append(args, credPath)

	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// passphraseFile returns ./.gpg-passphrase when it exists and is owner-only.
func passphraseFile() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	p := filepath.Join(cwd, ".gpg-passphrase")
	fi, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if mode := fi.Mode().Perm(); mode&0o077 != 0 {
		log.Warn().
			Str("passphrase_file", p).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Passphrase file has insecure permissions (should be 0600); skipping")
		return "", false
	}
	return p, true
}
