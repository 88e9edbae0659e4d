// Package signing attaches JWS signatures to submission envelopes before
// transmission.
//
// The pipeline decides which fields are covered by each signature and when
// signing is skipped; the signature primitive itself is JWS compact
// serialization over RFC 8785 canonicalized JSON.
//
// Signing is best-effort: if key material is absent or signing fails the
// envelope is left unsigned and the submission proceeds, because AGT's own
// validation is the final authority. A malformed signature comes back from
// the remote side with a diagnosable error; a client-side abort would hide
// the real failure reason.
package signing

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/gowebpki/jcs"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/efactura-ao/agt-bridge/internal/agt"
)

// Pipeline signs envelopes and their documents. A Pipeline with no key
// (Enabled() == false) is valid and leaves signature fields unset.
type Pipeline struct {
	key       any // ed25519.PrivateKey or *rsa.PrivateKey
	algorithm jose.SignatureAlgorithm
	keyID     string
	logger    *slog.Logger
}

// NewPipeline loads key material from keyPath and returns a signing
// pipeline. An empty keyPath yields a disabled pipeline; a load failure is
// returned as an error so the caller can decide to proceed unsigned.
func NewPipeline(keyPath, keyID string, logger *slog.Logger) (*Pipeline, error) {
	if keyPath == "" {
		logger.Warn("no signing key configured, submissions will be sent unsigned")
		return &Pipeline{logger: logger}, nil
	}

	key, alg, err := LoadSigningKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key from %s: %w", keyPath, err)
	}

	return &Pipeline{key: key, algorithm: alg, keyID: keyID, logger: logger}, nil
}

// NewPipelineWithKey creates a pipeline from an already-loaded private key.
func NewPipelineWithKey(key any, keyID string, logger *slog.Logger) (*Pipeline, error) {
	alg, err := algorithmFor(key)
	if err != nil {
		return nil, err
	}
	return &Pipeline{key: key, algorithm: alg, keyID: keyID, logger: logger}, nil
}

// Enabled reports whether the pipeline has key material.
func (p *Pipeline) Enabled() bool { return p.key != nil }

// signableDocument is the subset of document fields covered by the document
// signature. Mutable bookkeeping fields (status, remote messages) are
// excluded so a reconciliation never invalidates a signature.
type signableDocument struct {
	DocumentNo    string           `json:"documentNo"`
	Type          agt.DocumentType `json:"documentType"`
	IssueDate     time.Time        `json:"issueDate"`
	IssuerTaxID   string           `json:"issuerTaxId"`
	CustomerTaxID string           `json:"customerTaxId,omitempty"`
	GrossTotal    *float64         `json:"grossTotal,omitempty"`
}

// signableEnvelope is the subset of envelope fields covered by the envelope
// signature: the submission identity plus the document signatures, so the
// envelope signature seals the batch.
type signableEnvelope struct {
	SubmissionID       string    `json:"submissionId"`
	TaxID              string    `json:"taxId"`
	SubmissionDate     time.Time `json:"submissionDate"`
	SoftwareProductID  string    `json:"softwareProductId"`
	DocumentSignatures []string  `json:"documentSignatures"`
}

// Sign populates the signature fields of env and its documents.
//
// The caller treats a returned error as a warning, not an abort: the
// envelope is still submittable and the signature fields that could not be
// produced are simply left empty.
func (p *Pipeline) Sign(env *agt.Envelope) error {
	if !p.Enabled() {
		return nil
	}

	docSignatures := make([]string, 0, len(env.Documents))
	for i := range env.Documents {
		doc := &env.Documents[i]
		var gross *float64
		if doc.Totals != nil {
			gross = doc.Totals.Gross
		}
		token, err := p.signPayload(signableDocument{
			DocumentNo:    doc.DocumentNo,
			Type:          doc.Type,
			IssueDate:     doc.IssueDate,
			IssuerTaxID:   env.TaxID,
			CustomerTaxID: doc.CustomerTaxID,
			GrossTotal:    gross,
		})
		if err != nil {
			return fmt.Errorf("failed to sign document %s: %w", doc.DocumentNo, err)
		}
		doc.Signature = token
		docSignatures = append(docSignatures, token)
	}

	token, err := p.signPayload(signableEnvelope{
		SubmissionID:       env.SubmissionID,
		TaxID:              env.TaxID,
		SubmissionDate:     env.SubmissionDate,
		SoftwareProductID:  env.SoftwareInfo.ProductID,
		DocumentSignatures: docSignatures,
	})
	if err != nil {
		return fmt.Errorf("failed to sign envelope %s: %w", env.SubmissionID, err)
	}
	env.Signature = token

	return nil
}

// signPayload marshals, canonicalizes (RFC 8785) and signs a payload,
// returning the JWS compact serialization.
func (p *Pipeline) signPayload(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	signingKey := jose.SigningKey{Algorithm: p.algorithm, Key: p.key}

	signer, err := jose.NewSigner(signingKey, (&jose.SignerOptions{}).WithHeader("kid", p.keyID))
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	jws, err := signer.Sign(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	serialized, err := jws.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize JWS: %w", err)
	}

	return serialized, nil
}

// LoadSigningKey reads a private key from path. Keys may be supplied as a
// PKCS#8 PEM file or as a JWK / JWK set file; Ed25519 and RSA keys are
// supported.
func LoadSigningKey(path string) (any, jose.SignatureAlgorithm, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return nil, "", fmt.Errorf("failed to read key file: %w", err)
	}

	if block, _ := pem.Decode(data); block != nil {
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
		}
		alg, err := algorithmFor(key)
		if err != nil {
			return nil, "", err
		}
		return key, alg, nil
	}

	// not PEM - try JWK set, then a single JWK
	jwkKey, err := parseJWK(data)
	if err != nil {
		return nil, "", err
	}

	var raw any
	if err := jwk.Export(jwkKey, &raw); err != nil {
		return nil, "", fmt.Errorf("failed to export JWK to native key: %w", err)
	}

	alg, err := algorithmFor(raw)
	if err != nil {
		return nil, "", err
	}
	return raw, alg, nil
}

func parseJWK(data []byte) (jwk.Key, error) {
	if set, err := jwk.Parse(data); err == nil && set.Len() > 0 {
		key, ok := set.Key(0)
		if !ok {
			return nil, fmt.Errorf("JWK set contains no usable key")
		}
		return key, nil
	}

	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("key file is neither PEM nor JWK: %w", err)
	}
	return key, nil
}

func algorithmFor(key any) (jose.SignatureAlgorithm, error) {
	switch key.(type) {
	case ed25519.PrivateKey:
		return jose.EdDSA, nil
	case *rsa.PrivateKey:
		return jose.RS256, nil
	default:
		return "", fmt.Errorf("unsupported signing key type %T (want Ed25519 or RSA)", key)
	}
}
