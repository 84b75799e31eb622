package wax

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func buildAuthDataBytes(t *testing.T, flags byte, signCount uint32, acd []byte, extensions []byte) []byte {
	t.Helper()
	rpIDHash := sha256.Sum256([]byte("example.com"))

	var buf bytes.Buffer
	buf.Write(rpIDHash[:])
	buf.WriteByte(flags)
	countBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(countBytes, signCount)
	buf.Write(countBytes)
	buf.Write(acd)
	buf.Write(extensions)
	return buf.Bytes()
}

func buildAttestedCredentialDataBytes(t *testing.T, aaguid AAGUID, credID []byte, key *COSEKey) []byte {
	t.Helper()
	keyBytes, err := cbor.Marshal(key)
	if err != nil {
		t.Fatalf("error marshaling key: %v", err)
	}

	var buf bytes.Buffer
	buf.Write(aaguid[:])
	idLen := make([]byte, 2)
	binary.BigEndian.PutUint16(idLen, uint16(len(credID)))
	buf.Write(idLen)
	buf.Write(credID)
	buf.Write(keyBytes)
	return buf.Bytes()
}

func TestParseAuthenticatorDataMinimal(t *testing.T) {
	raw := buildAuthDataBytes(t, flagUserPresent, 7, nil, nil)

	ad, err := parseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ad.UserPresent {
		t.Fatalf("expected UserPresent flag to be set")
	}
	if ad.UserVerified {
		t.Fatalf("did not expect UserVerified flag to be set")
	}
	if ad.SignCount != 7 {
		t.Fatalf("SignCount = %d, want 7", ad.SignCount)
	}
	if ad.AttestedCredentialData != nil {
		t.Fatalf("did not expect attested credential data")
	}
}

func TestParseAuthenticatorDataWithAttestedCredentialData(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("error generating key: %v", err)
	}
	key := buildES256COSEKey(t, priv)
	aaguid := AAGUID{1, 2, 3, 4}
	credID := []byte{0xaa, 0xbb, 0xcc}

	acdBytes := buildAttestedCredentialDataBytes(t, aaguid, credID, key)
	raw := buildAuthDataBytes(t, flagUserPresent|flagUserVerified|flagAttestedCredentialData, 1, acdBytes, nil)

	ad, err := parseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ad.AttestedCredentialData == nil {
		t.Fatalf("expected attested credential data to be parsed")
	}
	if ad.AttestedCredentialData.AAGUID != aaguid {
		t.Fatalf("AAGUID mismatch: got %v, want %v", ad.AttestedCredentialData.AAGUID, aaguid)
	}
	if !bytes.Equal(ad.AttestedCredentialData.CredentialID, credID) {
		t.Fatalf("CredentialID mismatch")
	}
	if ad.AttestedCredentialData.CredentialPublicKey.Alg != key.Alg {
		t.Fatalf("decoded key algorithm mismatch")
	}
}

func TestParseAuthenticatorDataTooShort(t *testing.T) {
	if _, err := parseAuthenticatorData(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for undersized input")
	}
}

func TestParseAuthenticatorDataTrailingBytes(t *testing.T) {
	raw := buildAuthDataBytes(t, flagUserPresent, 1, nil, nil)
	raw = append(raw, 0xff)
	if _, err := parseAuthenticatorData(raw); err == nil {
		t.Fatalf("expected error for unexpected trailing bytes")
	}
}

func TestParseAuthenticatorDataWithExtensions(t *testing.T) {
	extMap := map[string]interface{}{"appid": true}
	extBytes, err := cbor.Marshal(extMap)
	if err != nil {
		t.Fatalf("error marshaling extensions: %v", err)
	}
	raw := buildAuthDataBytes(t, flagUserPresent|flagExtensionDataIncluded, 1, nil, extBytes)

	ad, err := parseAuthenticatorData(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := ad.Extensions["appid"].(bool); !ok || !v {
		t.Fatalf("expected appid extension to decode to true, got %v", ad.Extensions["appid"])
	}
}
