package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/efactura-ao/agt-bridge/internal/signing"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key pair",
	Long: `Generate a new key pair for signing submission envelopes.

The private key is written in PKCS#8 PEM (the format SIGNING_KEY_PATH
expects) and also as a JWK set. The public half is written as a JWK set
that can be handed to parties verifying envelope signatures.

Example:
  agt keygen --type ed25519 --output ./keys/signing-key`,
	RunE: runKeygen,
}

var (
	keygenType string
	keygenSize int
	keygenOut  string
	keygenID   string
)

func init() {
	keygenCmd.Flags().StringVar(&keygenType, "type", "ed25519", "key type (ed25519 or rsa)")
	keygenCmd.Flags().IntVar(&keygenSize, "size", 4096, "RSA key size in bits (ignored for ed25519)")
	keygenCmd.Flags().StringVar(&keygenOut, "output", "./keys/signing-key", "output path prefix for key files")
	keygenCmd.Flags().StringVar(&keygenID, "key-id", "", "key ID for the JWK (defaults to a generated UUID)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	keyID := keygenID
	if keyID == "" {
		keyID = uuid.NewString()
	}

	var privateKey any
	switch keygenType {
	case "ed25519":
		key, err := signing.GenerateEd25519Key()
		if err != nil {
			return err
		}
		privateKey = key
	case "rsa":
		key, err := signing.GenerateRSAKey(keygenSize)
		if err != nil {
			return err
		}
		privateKey = key
	default:
		return fmt.Errorf("unsupported key type %q (use ed25519 or rsa)", keygenType)
	}

	baseDir := filepath.Dir(keygenOut)
	prefix := filepath.Base(keygenOut)

	if err := signing.SavePrivateKeyToPEMFile(privateKey, baseDir, prefix+".pem"); err != nil {
		return err
	}
	if err := signing.SaveKeyToJWKFile(privateKey, keyID, baseDir, prefix+".jwk"); err != nil {
		return err
	}

	publicKey, err := signing.PublicKeyOf(privateKey)
	if err != nil {
		return err
	}
	if err := signing.SaveKeyToJWKFile(publicKey, keyID, baseDir, prefix+".pub.jwk"); err != nil {
		return err
	}

	appLogger.Info("generated signing key pair",
		slog.String("type", keygenType),
		slog.String("key_id", keyID),
		slog.String("private_pem", filepath.Join(baseDir, prefix+".pem")),
		slog.String("private_jwk", filepath.Join(baseDir, prefix+".jwk")),
		slog.String("public_jwk", filepath.Join(baseDir, prefix+".pub.jwk")),
	)
	appLogger.Warn("keep the private key files secret; only the .pub.jwk file should be distributed")

	return nil
}
