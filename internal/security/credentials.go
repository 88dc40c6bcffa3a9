package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"ticketstar/internal/common"
)

const (
	keyringService = "ticketstar"

	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32 // AES-256
)

// ErrCredentialNotFound is returned when no credential is stored under a name.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialManager stores secrets in the OS keyring, falling back to
// AES-GCM encrypted files when no keyring backend is available.
type CredentialManager struct {
	useKeyring bool
	dir        string
	masterKey  []byte
}

// Credential is the encrypted-file representation of a secret.
type Credential struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Encrypted bool   `json:"encrypted"`
}

// NewCredentialManager picks the keyring when available. dir holds the
// encrypted fallback files.
func NewCredentialManager(dir string) (*CredentialManager, error) {
	if isKeyringAvailable() {
		return &CredentialManager{useKeyring: true, dir: dir}, nil
	}
	return NewFileCredentialManager(dir)
}

// NewKeyringCredentialManager always uses the keyring.
func NewKeyringCredentialManager() *CredentialManager {
	return &CredentialManager{useKeyring: true}
}

// NewFileCredentialManager always uses encrypted files under dir.
func NewFileCredentialManager(dir string) (*CredentialManager, error) {
	cm := &CredentialManager{dir: dir}
	key, err := cm.getMasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize master key: %w", err)
	}
	cm.masterKey = key
	return cm, nil
}

// UsesKeyring reports which backend is active.
func (cm *CredentialManager) UsesKeyring() bool {
	return cm.useKeyring
}

// Store saves value under name.
func (cm *CredentialManager) Store(name, value string) error {
	if cm.useKeyring {
		if err := keyring.Set(keyringService, name, value); err != nil {
			return fmt.Errorf("failed to store in keyring: %w", err)
		}
		return nil
	}

	encrypted, err := cm.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	return cm.saveCredentialFile(&Credential{Name: name, Value: encrypted, Encrypted: true})
}

// Get returns the secret stored under name.
func (cm *CredentialManager) Get(name string) (string, error) {
	if cm.useKeyring {
		value, err := keyring.Get(keyringService, name)
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrCredentialNotFound
		}
		if err != nil {
			return "", fmt.Errorf("failed to get from keyring: %w", err)
		}
		return value, nil
	}

	cred, err := cm.loadCredentialFile(name)
	if err != nil {
		return "", err
	}
	if !cred.Encrypted {
		return cred.Value, nil
	}
	value, err := cm.decrypt(cred.Value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return value, nil
}

// Delete removes the secret stored under name.
func (cm *CredentialManager) Delete(name string) error {
	if cm.useKeyring {
		err := keyring.Delete(keyringService, name)
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return err
	}
	path, err := cm.credentialPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialNotFound
		}
		return err
	}
	return nil
}

// Encryption methods

func (cm *CredentialManager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (cm *CredentialManager) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, encryptedData := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// Helper methods

func (cm *CredentialManager) getMasterKey() ([]byte, error) {
	keyPath, err := common.JoinPath(cm.dir, ".master")
	if err != nil {
		return nil, fmt.Errorf("invalid master key path: %w", err)
	}

	data, err := os.ReadFile(keyPath) // #nosec G304 - path is validated
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(getMachineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(cm.dir, common.DirPermissionSecure); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, append(salt, key...), common.FilePermissionSecure); err != nil {
		return nil, err
	}

	return key, nil
}

func (cm *CredentialManager) credentialPath(name string) (string, error) {
	path, err := common.JoinPath(cm.dir, name+".cred")
	if err != nil {
		return "", fmt.Errorf("invalid credential file path: %w", err)
	}
	return path, nil
}

func (cm *CredentialManager) saveCredentialFile(cred *Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.dir, common.DirPermissionSecure); err != nil {
		return err
	}

	path, err := cm.credentialPath(cred.Name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, common.FilePermissionSecure)
}

func (cm *CredentialManager) loadCredentialFile(name string) (*Credential, error) {
	path, err := cm.credentialPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func isKeyringAvailable() bool {
	if os.Getenv("TICKETSTAR_USE_KEYRING") == "false" {
		return false
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux":
		if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("DBUS_SESSION_BUS_ADDRESS") != "" {
			return true
		}
	}
	return false
}

func getMachineID() string {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}

	data := fmt.Sprintf("%s-%s-%s-%s", hostname, user, runtime.GOOS, runtime.GOARCH)
	hash := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// DefaultCredentialsDir is where encrypted credential files live.
func DefaultCredentialsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ticketstar", "credentials")
}
