package wax

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"

	"github.com/fxamacker/cbor/v2"
)

// Google GlobalSign Root CA R2, the trust anchor SafetyNet attestation
// certificates chain to, regardless of what the metadata source carries.
const googleGlobalSignRootCAR2PEM = `
-----BEGIN CERTIFICATE-----
MIIDujCCAqKgAwIBAgILBAAAAAABD4Ym5g0wDQYJKoZIhvcNAQEFBQAwTDEgMB4G
A1UECxMXR2xvYmFsU2lnbiBSb290IENBIC0gUjIxEzARBgNVBAoTCkdsb2JhbFNp
Z24xEzARBgNVBAMTCkdsb2JhbFNpZ24wHhcNMDYxMjE1MDgwMDAwWhcNMjExMjE1
MDgwMDAwWjBMMSAwHgYDVQQLExdHbG9iYWxTaWduIFJvb3QgQ0EgLSBSMjETMBEG
A1UEChMKR2xvYmFsU2lnbjETMBEGA1UEAxMKR2xvYmFsU2lnbjCCASIwDQYJKoZI
hvcNAQEBBQADggEPADCCAQoCggEBAKbPJA6+Lm8omUVCxKs+IVSbC9N/hHD6ErPL
v4dfxn+G07IwXNb9rfF73OX4YJYJkhD10FPe+3t+c4isUoh7SqbKSaZeqKeMWhG8
eoLrvozps6yWJQeXSpkqBy+0Hne/ig+1AnwblrjFuTosvNYSuetZfeLQBoZfXklq
tTleiDTsvHgMCJiEbKjNS7SgfQx5TfC4LcshytVsW33hoCmEofnTlEnLJGKRILzd
C9XZzPnqJworc5HGnRusyMvo4KD0L5CLTfuwNhv2GXqF4G3yYROIXJ/gkwpRl4pa
zq+r1feqCapgvdzZX99yqWATXgAByUr6P6TqBwMhAo6CygPCm48CAwEAAaOBnDCB
mTAOBgNVHQ8BAf8EBAMCAQYwDwYDVR0TAQH/BAUwAwEB/zAdBgNVHQ4EFgQUm+IH
V2ccHsBqBt5ZtJot39wZhi4wNgYDVR0fBC8wLTAroCmgJ4YlaHR0cDovL2NybC5n
bG9iYWxzaWduLm5ldC9yb290LXIyLmNybDAfBgNVHSMEGDAWgBSb4gdXZxwewGoG
3lm0mi3f3BmGLjANBgkqhkiG9w0BAQUFAAOCAQEAmYFThxxol4aR7OBKuEQLq4Gs
J0/WwbgcQ3izDJr86iw8bmEbTUsp9Z8FHSbBuOmDAGJFtqkIk7mpM0sYmsL4h4hO
291xNBrBVNpGP+DTKqttVCL1OmLNIG+6KYnX3ZHu01yiPqFbQfXf5WRDLenVOavS
ot+3i9DAgBkcRcAtjOj4LaR0VknFBbVPFd5uRHg5h6h+u/N5GJG79G+dwfCMNYxd
AfvDbbnvRG15RjF+Cv6pgsH/76tuIMRQyV+dTZsXjAzlAcmgQWpzU/qlULRuJQ/7
TBj0/VLZjmmx6BEP3ojY+x1J96relc8geMJgEtslQIxq/H5COEBkEveegeGTLg==
-----END CERTIFICATE-----`

var googleGlobalSignRootCAR2Cert *x509.Certificate

var jwsSignatureAlgorithm = map[string]x509.SignatureAlgorithm{
	"RS256": x509.SHA256WithRSA,
	"RS384": x509.SHA384WithRSA,
	"RS512": x509.SHA512WithRSA,
	"PS256": x509.SHA256WithRSAPSS,
	"PS384": x509.SHA384WithRSAPSS,
	"PS512": x509.SHA512WithRSAPSS,
	"ES256": x509.ECDSAWithSHA256,
	"ES384": x509.ECDSAWithSHA384,
	"ES512": x509.ECDSAWithSHA512,
}

func init() {
	block, _ := pem.Decode([]byte(googleGlobalSignRootCAR2PEM))
	if block == nil {
		panic("wax: failed to decode embedded Google GlobalSign Root CA R2 PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		panic("wax: failed to parse embedded Google GlobalSign Root CA R2: " + err.Error())
	}
	googleGlobalSignRootCAR2Cert = cert
}

type androidSafetyNetStatement struct {
	Ver      string `cbor:"ver"`
	Response []byte `cbor:"response"`
}

type safetyNetJWSHeader struct {
	Alg string   `json:"alg"`
	X5C [][]byte `json:"x5c"`
}

type safetyNetPayload struct {
	Nonce           string `json:"nonce"`
	CTSProfileMatch bool   `json:"ctsProfileMatch"`
	BasicIntegrity  bool   `json:"basicIntegrity"`
}

// verifyAndroidSafetyNetAttestation implements the android-safetynet
// attestation statement verification procedure: the statement carries a
// JWS in compact serialization, signed by a certificate chaining to
// Google's root, attesting to device integrity and a nonce binding the
// statement to this ceremony.
func verifyAndroidSafetyNetAttestation(obj *AttestationObject, clientDataHash []byte) (*AttestationResult, error) {
	var stmt androidSafetyNetStatement
	if err := cbor.Unmarshal(obj.Statement, &stmt); err != nil {
		return nil, fmtWrapErr(KindInvalidCBOR, FormatAndroidSafetyNet, err, "error unmarshaling android-safetynet attestation statement")
	}

	parts := bytes.Split(stmt.Response, []byte("."))
	if len(parts) != 3 {
		return nil, fmtErr(KindInvalidAttestationCert, FormatAndroidSafetyNet, "JWS compact serialization expects 3 parts, got %d", len(parts))
	}
	rawHeader, rawPayload, rawSig := parts[0], parts[1], parts[2]

	headerBytes, err := base64.RawURLEncoding.DecodeString(string(rawHeader))
	if err != nil {
		return nil, fmtWrapErr(KindInvalidAttestationCert, FormatAndroidSafetyNet, err, "error decoding JWS header")
	}
	var header safetyNetJWSHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmtWrapErr(KindInvalidAttestationCert, FormatAndroidSafetyNet, err, "error unmarshaling JWS header")
	}
	if len(header.X5C) == 0 {
		return nil, fmtErr(KindInvalidAttestationCert, FormatAndroidSafetyNet, "JWS header is missing x5c")
	}

	certs, err := parseDERCertificates(header.X5C)
	if err != nil {
		return nil, err
	}
	leaf := certs[0]

	payloadBytes, err := base64.RawURLEncoding.DecodeString(string(rawPayload))
	if err != nil {
		return nil, fmtWrapErr(KindInvalidAttestationCert, FormatAndroidSafetyNet, err, "error decoding JWS payload")
	}
	var payload safetyNetPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmtWrapErr(KindInvalidAttestationCert, FormatAndroidSafetyNet, err, "error unmarshaling JWS payload")
	}

	nonceBase := append(append([]byte{}, obj.RawAuthenticatorData...), clientDataHash...)
	nonceDigest := sha256.Sum256(nonceBase)
	expectedNonce := base64.StdEncoding.EncodeToString(nonceDigest[:])
	if expectedNonce != payload.Nonce {
		return nil, fmtErr(KindInvalidSignature, FormatAndroidSafetyNet, "attestation nonce does not match authenticatorData || clientDataHash digest")
	}

	if err := leaf.VerifyHostname("attest.android.com"); err != nil {
		return nil, fmtWrapErr(KindInvalidAttestationCert, FormatAndroidSafetyNet, err, `attestation certificate is not issued to "attest.android.com"`)
	}
	if !payload.CTSProfileMatch {
		return nil, fmtErr(KindUntrustedAttestation, FormatAndroidSafetyNet, "ctsProfileMatch is false")
	}

	sigAlg, ok := jwsSignatureAlgorithm[header.Alg]
	if !ok {
		return nil, fmtErr(KindInvalidPublicKeyAlgorithm, FormatAndroidSafetyNet, "unsupported JWS algorithm %q", header.Alg)
	}

	signedInput := append(append([]byte{}, rawHeader...), '.')
	signedInput = append(signedInput, rawPayload...)
	sig, err := base64.RawURLEncoding.DecodeString(string(rawSig))
	if err != nil {
		return nil, fmtWrapErr(KindInvalidSignature, FormatAndroidSafetyNet, err, "error decoding JWS signature")
	}
	if err := leaf.CheckSignature(sigAlg, signedInput, sig); err != nil {
		return nil, fmtWrapErr(KindInvalidSignature, FormatAndroidSafetyNet, err, "android-safetynet JWS signature verification failed")
	}

	roots := []*x509.Certificate{googleGlobalSignRootCAR2Cert}
	if err := verifyTrustPath(certs, roots); err != nil {
		return nil, fmtWrapErr(KindUntrustedAttestation, FormatAndroidSafetyNet, err, "android-safetynet attestation certificate chain does not lead to Google's root")
	}

	var aaguid AAGUID
	if acd := obj.AuthenticatorData.AttestedCredentialData; acd != nil {
		aaguid = acd.AAGUID
	}

	return &AttestationResult{Type: AttestationBasic, Format: FormatAndroidSafetyNet, AAGUID: aaguid, TrustPath: header.X5C}, nil
}
