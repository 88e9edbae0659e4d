// Key generation and storage for the signing pipeline.
//
// AGT does not prescribe a key type for software certificates, so both
// Ed25519 and RSA are supported. Ed25519 is the default for new
// installations. Private keys are written as PKCS#8 PEM (the format the
// pipeline loads at startup) and additionally as a JWK set so the public
// half can be handed to integrators that verify envelope signatures.

package signing

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// GenerateEd25519Key generates a new Ed25519 private key.
func GenerateEd25519Key() (ed25519.PrivateKey, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	return privateKey, nil
}

// GenerateRSAKey generates a new RSA key pair with the specified bit size.
// Minimum key size is 2048 bits and the size must be a multiple of 256.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	if bits < 2048 {
		return nil, fmt.Errorf("key size must be at least 2048 bits")
	}

	if bits%256 != 0 {
		return nil, fmt.Errorf("key size should be a multiple of 256")
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	return privateKey, nil
}

// KeyToJWK converts an Ed25519 or RSA key (private or public) to JWK
// format with the given key ID and a signature algorithm hint.
func KeyToJWK(rawKey any, keyID string) (jwk.Key, error) {
	if rawKey == nil {
		return nil, fmt.Errorf("key is nil")
	}
	if keyID == "" {
		return nil, fmt.Errorf("keyID is required")
	}

	key, err := jwk.Import(rawKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK: %w", err)
	}

	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}

	var alg jwa.SignatureAlgorithm
	switch rawKey.(type) {
	case ed25519.PrivateKey, ed25519.PublicKey:
		alg = jwa.EdDSA()
	case *rsa.PrivateKey, *rsa.PublicKey:
		alg = jwa.RS256()
	default:
		return nil, fmt.Errorf("unsupported key type %T", rawKey)
	}

	if err := key.Set(jwk.AlgorithmKey, alg); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, fmt.Errorf("failed to set key usage: %w", err)
	}

	return key, nil
}

// SavePrivateKeyToPEMFile saves a private key to a PEM file in PKCS#8 format.
//
// Parameters:
//   - baseDir: The base directory to scope file access (e.g., "./keys")
//   - filename: The filename within the base directory (e.g., "private.pem")
func SavePrivateKeyToPEMFile(privateKey any, baseDir, filename string) error {
	privBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privBytes,
	}

	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return fmt.Errorf("failed to open root directory %s: %w", baseDir, err)
	}
	defer root.Close()

	file, err := root.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := pem.Encode(file, pemBlock); err != nil {
		return fmt.Errorf("failed to encode PEM: %w", err)
	}

	return nil
}

// SaveKeyToJWKFile saves a key to a single-key JWK set file. Private keys
// are written with mode 0600, public keys with 0644.
//
// Parameters:
//   - baseDir: The base directory to scope file access (e.g., "./keys")
//   - filename: The filename within the base directory (e.g., "private.jwk")
func SaveKeyToJWKFile(rawKey any, keyID, baseDir, filename string) error {
	jwkKey, err := KeyToJWK(rawKey, keyID)
	if err != nil {
		return fmt.Errorf("failed to create JWK: %w", err)
	}

	jwkSet := jwk.NewSet()
	if err := jwkSet.AddKey(jwkKey); err != nil {
		return fmt.Errorf("failed to add key to JWK set: %w", err)
	}

	jsonBytes, err := json.MarshalIndent(jwkSet, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JWK set: %w", err)
	}

	mode := os.FileMode(0600)
	if isPublicKey(rawKey) {
		mode = 0644
	}

	root, err := os.OpenRoot(baseDir)
	if err != nil {
		return fmt.Errorf("failed to open root directory %s: %w", baseDir, err)
	}
	defer root.Close()

	if err := root.WriteFile(filename, jsonBytes, mode); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// PublicKeyOf returns the public half of an Ed25519 or RSA private key.
func PublicKeyOf(privateKey any) (crypto.PublicKey, error) {
	switch k := privateKey.(type) {
	case ed25519.PrivateKey:
		return k.Public(), nil
	case *rsa.PrivateKey:
		return k.Public(), nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", privateKey)
	}
}

func isPublicKey(rawKey any) bool {
	switch rawKey.(type) {
	case ed25519.PublicKey, *rsa.PublicKey:
		return true
	}
	return false
}
