package stack

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
)

func hashFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// hashDirectory digests every regular file under dirPath together with its relative path.
// filepath.Walk visits in lexical order, so the digest is stable.
func hashDirectory(dirPath string) (string, error) {
	hash := sha256.New()
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			fileHash, err := hashFile(path)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(dirPath, path)
			if err != nil {
				return err
			}
			hash.Write([]byte(filepath.ToSlash(rel)))
			hash.Write([]byte(fileHash))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func versionLabel(dirPath string) (string, error) {
	digest, err := hashDirectory(dirPath)
	if err != nil {
		return "", err
	}
	return "v-" + digest[:12], nil
}
