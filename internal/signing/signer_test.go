package signing

import (
	"crypto/ed25519"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/efactura-ao/agt-bridge/internal/agt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(f float64) *float64 { return &f }

func testEnvelope() *agt.Envelope {
	return &agt.Envelope{
		SubmissionID:   "11111111-2222-3333-4444-555555555555",
		TaxID:          "5417000001",
		SubmissionDate: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		SoftwareInfo:   agt.SoftwareInfo{ProductID: "agt-bridge", ProductVersion: "dev"},
		Documents: []agt.Document{
			{
				DocumentNo: "FT 2026/1",
				Type:       agt.DocTypeInvoice,
				IssueDate:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
				Lines: []agt.Line{
					{LineNo: 1, Description: "consulting", Quantity: 2, UnitPrice: 1000},
				},
				Totals: &agt.DocumentTotals{Net: floatPtr(2000), TaxPayable: 280, Gross: floatPtr(2280)},
			},
		},
	}
}

func TestPipeline_DisabledLeavesSignaturesEmpty(t *testing.T) {
	p, err := NewPipeline("", "test-key", testLogger())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if p.Enabled() {
		t.Fatal("Enabled() = true for a keyless pipeline, want false")
	}

	env := testEnvelope()
	if err := p.Sign(env); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if env.Signature != "" || env.Documents[0].Signature != "" {
		t.Error("disabled pipeline must not populate signature fields")
	}
}

func TestPipeline_SignEd25519(t *testing.T) {
	key, err := GenerateEd25519Key()
	if err != nil {
		t.Fatalf("GenerateEd25519Key() error = %v", err)
	}

	p, err := NewPipelineWithKey(key, "test-key", testLogger())
	if err != nil {
		t.Fatalf("NewPipelineWithKey() error = %v", err)
	}
	if !p.Enabled() {
		t.Fatal("Enabled() = false, want true")
	}

	env := testEnvelope()
	if err := p.Sign(env); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if env.Signature == "" {
		t.Fatal("envelope signature is empty")
	}
	if env.Documents[0].Signature == "" {
		t.Fatal("document signature is empty")
	}

	// the envelope signature verifies against the public key and seals the
	// document signatures
	jws, err := jose.ParseSigned(env.Signature, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		t.Fatalf("ParseSigned() error = %v", err)
	}
	payload, err := jws.Verify(key.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	var signed struct {
		SubmissionID       string   `json:"submissionId"`
		DocumentSignatures []string `json:"documentSignatures"`
	}
	if err := json.Unmarshal(payload, &signed); err != nil {
		t.Fatalf("failed to decode signed payload: %v", err)
	}
	if signed.SubmissionID != env.SubmissionID {
		t.Errorf("signed submissionId = %q, want %q", signed.SubmissionID, env.SubmissionID)
	}
	if len(signed.DocumentSignatures) != 1 || signed.DocumentSignatures[0] != env.Documents[0].Signature {
		t.Error("envelope signature does not cover the document signatures")
	}

	if kid := jws.Signatures[0].Header.KeyID; kid != "test-key" {
		t.Errorf("kid header = %q, want test-key", kid)
	}
}

func TestPipeline_DocumentSignatureCoversIssuer(t *testing.T) {
	key, err := GenerateEd25519Key()
	if err != nil {
		t.Fatalf("GenerateEd25519Key() error = %v", err)
	}
	p, err := NewPipelineWithKey(key, "test-key", testLogger())
	if err != nil {
		t.Fatalf("NewPipelineWithKey() error = %v", err)
	}

	env := testEnvelope()
	if err := p.Sign(env); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	jws, err := jose.ParseSigned(env.Documents[0].Signature, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		t.Fatalf("ParseSigned() error = %v", err)
	}
	payload, err := jws.Verify(key.Public().(ed25519.PublicKey))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	var signed struct {
		DocumentNo  string   `json:"documentNo"`
		IssuerTaxID string   `json:"issuerTaxId"`
		GrossTotal  *float64 `json:"grossTotal"`
	}
	if err := json.Unmarshal(payload, &signed); err != nil {
		t.Fatalf("failed to decode signed payload: %v", err)
	}
	if signed.DocumentNo != "FT 2026/1" || signed.IssuerTaxID != "5417000001" {
		t.Errorf("signed payload = %+v, want document identity and issuer", signed)
	}
	if signed.GrossTotal == nil || *signed.GrossTotal != 2280 {
		t.Errorf("signed grossTotal = %v, want 2280", signed.GrossTotal)
	}
}

func TestPipeline_RSA(t *testing.T) {
	key, err := GenerateRSAKey(2048)
	if err != nil {
		t.Fatalf("GenerateRSAKey() error = %v", err)
	}

	p, err := NewPipelineWithKey(key, "rsa-key", testLogger())
	if err != nil {
		t.Fatalf("NewPipelineWithKey() error = %v", err)
	}

	env := testEnvelope()
	if err := p.Sign(env); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	jws, err := jose.ParseSigned(env.Signature, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		t.Fatalf("ParseSigned() error = %v", err)
	}
	if _, err := jws.Verify(&key.PublicKey); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestNewPipelineWithKey_UnsupportedType(t *testing.T) {
	if _, err := NewPipelineWithKey("not a key", "k", testLogger()); err == nil {
		t.Error("NewPipelineWithKey() error = nil, want unsupported key type failure")
	}
}

func TestLoadSigningKey_PEMRoundTrip(t *testing.T) {
	dir := t.TempDir()

	key, err := GenerateEd25519Key()
	if err != nil {
		t.Fatalf("GenerateEd25519Key() error = %v", err)
	}
	if err := SavePrivateKeyToPEMFile(key, dir, "signing.pem"); err != nil {
		t.Fatalf("SavePrivateKeyToPEMFile() error = %v", err)
	}

	loaded, alg, err := LoadSigningKey(filepath.Join(dir, "signing.pem"))
	if err != nil {
		t.Fatalf("LoadSigningKey() error = %v", err)
	}
	if alg != jose.EdDSA {
		t.Errorf("algorithm = %q, want EdDSA", alg)
	}
	if !key.Equal(loaded.(ed25519.PrivateKey)) {
		t.Error("loaded key differs from the generated one")
	}
}

func TestLoadSigningKey_JWKRoundTrip(t *testing.T) {
	dir := t.TempDir()

	key, err := GenerateEd25519Key()
	if err != nil {
		t.Fatalf("GenerateEd25519Key() error = %v", err)
	}
	if err := SaveKeyToJWKFile(key, "jwk-key", dir, "signing.jwk"); err != nil {
		t.Fatalf("SaveKeyToJWKFile() error = %v", err)
	}

	loaded, alg, err := LoadSigningKey(filepath.Join(dir, "signing.jwk"))
	if err != nil {
		t.Fatalf("LoadSigningKey() error = %v", err)
	}
	if alg != jose.EdDSA {
		t.Errorf("algorithm = %q, want EdDSA", alg)
	}
	if !key.Equal(loaded.(ed25519.PrivateKey)) {
		t.Error("loaded key differs from the generated one")
	}
}

func TestLoadSigningKey_MissingFile(t *testing.T) {
	if _, _, err := LoadSigningKey(filepath.Join(t.TempDir(), "nope.pem")); err == nil {
		t.Error("LoadSigningKey() error = nil, want read failure")
	}
}

func TestNewPipeline_BadKeyFileReturnsError(t *testing.T) {
	if _, err := NewPipeline(filepath.Join(t.TempDir(), "nope.pem"), "k", testLogger()); err == nil {
		t.Error("NewPipeline() error = nil, want load failure")
	}
}
