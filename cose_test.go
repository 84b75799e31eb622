package wax

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func marshalCanonical(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := cbor.Marshal(v)
	if err != nil {
		t.Fatalf("error marshaling %v: %v", v, err)
	}
	return b
}

func buildES256COSEKey(t *testing.T, priv *ecdsa.PrivateKey) *COSEKey {
	t.Helper()
	return &COSEKey{
		Kty:       2, // EC2
		Alg:       int(AlgorithmES256),
		CrvOrNOrK: marshalCanonical(t, int(CurveP256)),
		XOrE:      marshalCanonical(t, priv.PublicKey.X.Bytes()),
		Y:         marshalCanonical(t, priv.PublicKey.Y.Bytes()),
	}
}

func buildRSACOSEKey(t *testing.T, priv *rsa.PrivateKey, alg COSEAlgorithmIdentifier) *COSEKey {
	t.Helper()
	return &COSEKey{
		Kty:       3, // RSA
		Alg:       int(alg),
		CrvOrNOrK: marshalCanonical(t, priv.PublicKey.N.Bytes()),
		XOrE:      marshalCanonical(t, big.NewInt(int64(priv.PublicKey.E)).Bytes()),
	}
}

func buildEd25519COSEKey(t *testing.T, pub ed25519.PublicKey) *COSEKey {
	t.Helper()
	return &COSEKey{
		Kty:       1, // OKP
		Alg:       int(AlgorithmEdDSA),
		CrvOrNOrK: marshalCanonical(t, 6), // Ed25519
		XOrE:      marshalCanonical(t, []byte(pub)),
	}
}

func TestVerifySignatureES256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("error generating key: %v", err)
	}
	key := buildES256COSEKey(t, priv)

	message := []byte("authenticator data || client data hash")
	hash := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, priv, hash[:])
	if err != nil {
		t.Fatalf("error signing: %v", err)
	}
	sig, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		t.Fatalf("error encoding signature: %v", err)
	}

	if err := VerifySignature(key, message, sig); err != nil {
		t.Fatalf("VerifySignature returned error: %v", err)
	}
}

func TestVerifySignatureES256BadSignature(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("error generating key: %v", err)
	}
	key := buildES256COSEKey(t, priv)

	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("error generating key: %v", err)
	}
	message := []byte("message")
	hash := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, other, hash[:])
	if err != nil {
		t.Fatalf("error signing: %v", err)
	}
	sig, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		t.Fatalf("error encoding signature: %v", err)
	}

	if err := VerifySignature(key, message, sig); err == nil {
		t.Fatalf("expected verification failure with mismatched key")
	}
}

func TestVerifySignatureRS256(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("error generating RSA key: %v", err)
	}
	key := buildRSACOSEKey(t, priv, AlgorithmRS256)

	message := []byte("message to sign")
	hash := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, hash[:])
	if err != nil {
		t.Fatalf("error signing: %v", err)
	}

	if err := VerifySignature(key, message, sig); err != nil {
		t.Fatalf("VerifySignature returned error: %v", err)
	}
}

func TestVerifySignatureEdDSA(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("error generating Ed25519 key: %v", err)
	}
	key := buildEd25519COSEKey(t, pub)

	message := []byte("message")
	sig := ed25519.Sign(priv, message)

	if err := VerifySignature(key, message, sig); err != nil {
		t.Fatalf("VerifySignature returned error: %v", err)
	}
}

func TestDecodeCOSEKeyPrefixConsumesOnlyKeyBytes(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("error generating key: %v", err)
	}
	key := buildES256COSEKey(t, priv)
	keyBytes, err := cbor.Marshal(key)
	if err != nil {
		t.Fatalf("error marshaling key: %v", err)
	}

	trailer := []byte{0xde, 0xad, 0xbe, 0xef}
	buf := append(append([]byte{}, keyBytes...), trailer...)

	decoded, n, err := decodeCOSEKeyPrefix(buf)
	if err != nil {
		t.Fatalf("decodeCOSEKeyPrefix returned error: %v", err)
	}
	if n != len(keyBytes) {
		t.Fatalf("consumed %d bytes, want %d", n, len(keyBytes))
	}
	if decoded.Alg != key.Alg {
		t.Fatalf("decoded Alg = %d, want %d", decoded.Alg, key.Alg)
	}
}

func TestVerifySignatureUnsupportedAlgorithm(t *testing.T) {
	key := &COSEKey{Alg: -99999}
	if err := VerifySignature(key, []byte("x"), []byte("y")); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
}
