package wax

import (
	"bytes"
	"crypto/x509"

	"github.com/pkg/errors"
)

// verifyTrustPath checks that chain (leaf first, root-of-the-chain last)
// is internally well-formed and that its top certificate was issued by
// one of roots. It does not consult a system certificate pool: WebAuthn
// attestation roots come from a MetadataSource, not the OS trust store.
func verifyTrustPath(chain []*x509.Certificate, roots []*x509.Certificate) error {
	if len(chain) == 0 {
		return errors.New("trust path is empty")
	}

	for i, cert := range chain {
		if err := validateSignatureAlgorithm(cert); err != nil {
			return errors.Wrapf(err, "certificate at index %d", i)
		}
		isCA := i != 0
		if err := validateBasicConstraints(cert, isCA); err != nil {
			return errors.Wrapf(err, "certificate at index %d", i)
		}
	}

	for i := len(chain) - 1; i >= 1; i-- {
		parent := chain[i]
		child := chain[i-1]
		if !bytes.Equal(parent.RawSubject, child.RawIssuer) {
			return errors.Errorf("certificate at index %d: issuer does not match parent subject at index %d", i-1, i)
		}
		if err := child.CheckSignatureFrom(parent); err != nil {
			return errors.Wrapf(err, "certificate at index %d not signed by parent at index %d", i-1, i)
		}
	}

	top := chain[len(chain)-1]
	for _, root := range roots {
		if err := top.CheckSignatureFrom(root); err != nil {
			continue
		}
		if !bytes.Equal(root.RawSubject, top.RawIssuer) {
			continue
		}
		return nil
	}

	return errors.New("chain is not issued by any known attestation root")
}

func validateSignatureAlgorithm(cert *x509.Certificate) error {
	switch cert.SignatureAlgorithm {
	case x509.MD2WithRSA, x509.MD5WithRSA, x509.SHA1WithRSA:
		return errors.Errorf("weak signature algorithm: %v", cert.SignatureAlgorithm)
	}
	return nil
}

func validateBasicConstraints(cert *x509.Certificate, isCA bool) error {
	if isCA && !cert.IsCA {
		return errors.New("certificate must be a CA certificate")
	}
	if !isCA && cert.IsCA {
		return errors.New("leaf attestation certificate cannot be a CA")
	}
	return nil
}

// parseDERCertificates parses a list of raw DER-encoded certificates in
// the order an attestation statement's x5c field carries them: leaf
// first.
func parseDERCertificates(der [][]byte) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, len(der))
	for i, d := range der {
		cert, err := x509.ParseCertificate(d)
		if err != nil {
			return nil, wrapErr(KindInvalidAttestationCert, err, "error parsing certificate at index %d", i)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}
