package wax

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func signASN1(t *testing.T, priv *ecdsa.PrivateKey, message []byte) []byte {
	t.Helper()
	hash := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, priv, hash[:])
	require.NoError(t, err)
	sig, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	require.NoError(t, err)
	return sig
}

func buildPackedAttestationCert(t *testing.T, aaguid AAGUID, root *x509.Certificate, rootKey *ecdsa.PrivateKey) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	aaguidExt, err := asn1.Marshal(aaguid[:])
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject: pkix.Name{
			Country:            []string{"US"},
			Organization:       []string{"Test Authenticator Vendor"},
			OrganizationalUnit: []string{"Authenticator Attestation"},
			CommonName:         "Test Authenticator",
		},
		SignatureAlgorithm: x509.ECDSAWithSHA256,
		ExtraExtensions: []pkix.Extension{
			{Id: oidFIDOGenCEAAGUID, Critical: false, Value: aaguidExt},
		},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, root, &priv.PublicKey, rootKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, priv
}

func TestVerifyPackedAttestationSelf(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key := buildES256COSEKey(t, priv)
	aaguid := AAGUID{5, 6, 7}

	authData := []byte("fake-authenticator-data")
	clientDataHash := []byte("fake-client-data-hash")
	signed := append(append([]byte{}, authData...), clientDataHash...)
	sig := signASN1(t, priv, signed)

	stmt := packedAttestationStatement{Alg: int(AlgorithmES256), Sig: sig}
	obj := &AttestationObject{
		Format:               FormatPacked,
		RawAuthenticatorData: authData,
		AuthenticatorData: AuthenticatorData{
			AttestedCredentialData: &AttestedCredentialData{AAGUID: aaguid, CredentialPublicKey: *key},
		},
		Statement: marshalCanonical(t, stmt),
	}

	result, err := verifyAttestationStatement(obj, clientDataHash, nil, true)
	require.NoError(t, err)
	require.Equal(t, AttestationSelf, result.Type)
	require.Equal(t, aaguid, result.AAGUID)
}

func TestVerifyPackedAttestationSelfAlgorithmMismatch(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key := buildES256COSEKey(t, priv)

	stmt := packedAttestationStatement{Alg: int(AlgorithmRS256), Sig: []byte("x")}
	obj := &AttestationObject{
		Format: FormatPacked,
		AuthenticatorData: AuthenticatorData{
			AttestedCredentialData: &AttestedCredentialData{CredentialPublicKey: *key},
		},
		Statement: marshalCanonical(t, stmt),
	}

	_, err = verifyAttestationStatement(obj, []byte("hash"), nil, true)
	require.Error(t, err)
}

func TestVerifyPackedAttestationFullWithoutTrustRoot(t *testing.T) {
	root, rootKey := generateSelfSignedCA(t, "packed test root")
	aaguid := AAGUID{9, 9, 9}
	cert, certKey := buildPackedAttestationCert(t, aaguid, root, rootKey)

	authData := []byte("authenticator-data-bytes")
	clientDataHash := []byte("client-data-hash-bytes")
	signed := append(append([]byte{}, authData...), clientDataHash...)
	sig := signASN1(t, certKey, signed)

	stmt := packedAttestationStatement{Alg: int(AlgorithmES256), Sig: sig, X5C: [][]byte{cert.Raw}}
	obj := &AttestationObject{
		Format:               FormatPacked,
		RawAuthenticatorData: authData,
		AuthenticatorData: AuthenticatorData{
			AttestedCredentialData: &AttestedCredentialData{AAGUID: aaguid},
		},
		Statement: marshalCanonical(t, stmt),
	}

	result, err := verifyAttestationStatement(obj, clientDataHash, nil, false)
	require.NoError(t, err)
	require.Equal(t, AttestationUncertain, result.Type)
}

func TestVerifyPackedAttestationFullWithTrustedRoot(t *testing.T) {
	root, rootKey := generateSelfSignedCA(t, "packed test root")
	aaguid := AAGUID{9, 9, 9}
	cert, certKey := buildPackedAttestationCert(t, aaguid, root, rootKey)

	authData := []byte("authenticator-data-bytes")
	clientDataHash := []byte("client-data-hash-bytes")
	signed := append(append([]byte{}, authData...), clientDataHash...)
	sig := signASN1(t, certKey, signed)

	stmt := packedAttestationStatement{Alg: int(AlgorithmES256), Sig: sig, X5C: [][]byte{cert.Raw}}
	obj := &AttestationObject{
		Format:               FormatPacked,
		RawAuthenticatorData: authData,
		AuthenticatorData: AuthenticatorData{
			AttestedCredentialData: &AttestedCredentialData{AAGUID: aaguid},
		},
		Statement: marshalCanonical(t, stmt),
	}

	meta := NewStaticMetadataIndex([]*MetadataStatement{
		{AAGUID: aaguid, AttestationRootCertificates: [][]byte{root.Raw}, AttestationTypes: []string{"attca"}},
	})

	result, err := verifyAttestationStatement(obj, clientDataHash, meta, true)
	require.NoError(t, err)
	require.Equal(t, AttestationAttCA, result.Type)
}

func TestVerifyPackedAttestationFullWithTrustedRootBasicFull(t *testing.T) {
	root, rootKey := generateSelfSignedCA(t, "packed test root")
	aaguid := AAGUID{9, 9, 9}
	cert, certKey := buildPackedAttestationCert(t, aaguid, root, rootKey)

	authData := []byte("authenticator-data-bytes")
	clientDataHash := []byte("client-data-hash-bytes")
	signed := append(append([]byte{}, authData...), clientDataHash...)
	sig := signASN1(t, certKey, signed)

	stmt := packedAttestationStatement{Alg: int(AlgorithmES256), Sig: sig, X5C: [][]byte{cert.Raw}}
	obj := &AttestationObject{
		Format:               FormatPacked,
		RawAuthenticatorData: authData,
		AuthenticatorData: AuthenticatorData{
			AttestedCredentialData: &AttestedCredentialData{AAGUID: aaguid},
		},
		Statement: marshalCanonical(t, stmt),
	}

	meta := NewStaticMetadataIndex([]*MetadataStatement{
		{AAGUID: aaguid, AttestationRootCertificates: [][]byte{root.Raw}, AttestationTypes: []string{"basic_full"}},
	})

	result, err := verifyAttestationStatement(obj, clientDataHash, meta, true)
	require.NoError(t, err)
	require.Equal(t, AttestationBasic, result.Type)
}

func TestVerifyPackedAttestationFullWithTrustedRootNoAttestationTypes(t *testing.T) {
	root, rootKey := generateSelfSignedCA(t, "packed test root")
	aaguid := AAGUID{9, 9, 9}
	cert, certKey := buildPackedAttestationCert(t, aaguid, root, rootKey)

	authData := []byte("authenticator-data-bytes")
	clientDataHash := []byte("client-data-hash-bytes")
	signed := append(append([]byte{}, authData...), clientDataHash...)
	sig := signASN1(t, certKey, signed)

	stmt := packedAttestationStatement{Alg: int(AlgorithmES256), Sig: sig, X5C: [][]byte{cert.Raw}}
	obj := &AttestationObject{
		Format:               FormatPacked,
		RawAuthenticatorData: authData,
		AuthenticatorData: AuthenticatorData{
			AttestedCredentialData: &AttestedCredentialData{AAGUID: aaguid},
		},
		Statement: marshalCanonical(t, stmt),
	}

	meta := NewStaticMetadataIndex([]*MetadataStatement{
		{AAGUID: aaguid, AttestationRootCertificates: [][]byte{root.Raw}},
	})

	result, err := verifyAttestationStatement(obj, clientDataHash, meta, true)
	require.NoError(t, err)
	require.Equal(t, AttestationUncertain, result.Type)
}

func TestVerifyPackedAttestationFullMissingMetadataErrors(t *testing.T) {
	root, rootKey := generateSelfSignedCA(t, "packed test root")
	aaguid := AAGUID{9, 9, 9}
	cert, certKey := buildPackedAttestationCert(t, aaguid, root, rootKey)

	authData := []byte("authenticator-data-bytes")
	clientDataHash := []byte("client-data-hash-bytes")
	signed := append(append([]byte{}, authData...), clientDataHash...)
	sig := signASN1(t, certKey, signed)

	stmt := packedAttestationStatement{Alg: int(AlgorithmES256), Sig: sig, X5C: [][]byte{cert.Raw}}
	obj := &AttestationObject{
		Format:               FormatPacked,
		RawAuthenticatorData: authData,
		AuthenticatorData: AuthenticatorData{
			AttestedCredentialData: &AttestedCredentialData{AAGUID: aaguid},
		},
		Statement: marshalCanonical(t, stmt),
	}

	meta := NewStaticMetadataIndex(nil)

	_, err := verifyAttestationStatement(obj, clientDataHash, meta, true)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoAttestationMetadataStatement)
}

func TestVerifyPackedAttestationRejectsECDAA(t *testing.T) {
	stmt := packedAttestationStatement{Alg: int(AlgorithmES256), ECDAAKeyID: marshalCanonical(t, []byte{1})}
	obj := &AttestationObject{
		Format: FormatPacked,
		AuthenticatorData: AuthenticatorData{
			AttestedCredentialData: &AttestedCredentialData{},
		},
		Statement: marshalCanonical(t, stmt),
	}
	_, err := verifyAttestationStatement(obj, []byte("hash"), nil, true)
	require.Error(t, err)
}
