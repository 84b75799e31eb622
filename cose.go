package wax

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// COSEKey is a public key decoded from COSE_Key CBOR. Raw retains the
// exact bytes the key was decoded from, so a caller persisting a
// credential's public key can round-trip it byte-for-byte rather than
// re-encoding a struct that CBOR might serialize differently.
type COSEKey struct {
	Raw       []byte          `cbor:"-"`
	Kty       int             `cbor:"1,keyasint,omitempty"`
	Kid       []byte          `cbor:"2,keyasint,omitempty"`
	Alg       int             `cbor:"3,keyasint,omitempty"`
	KeyOpts   int             `cbor:"4,keyasint,omitempty"`
	IV        []byte          `cbor:"5,keyasint,omitempty"`
	CrvOrNOrK cbor.RawMessage `cbor:"-1,keyasint,omitempty"` // Crv for EC keys, N for RSA modulus, K for symmetric
	XOrE      cbor.RawMessage `cbor:"-2,keyasint,omitempty"` // X for curve x-coordinate, E for RSA public exponent
	Y         cbor.RawMessage `cbor:"-3,keyasint,omitempty"` // Y for curve y-coordinate
	D         []byte          `cbor:"-4,keyasint,omitempty"`
}

// COSEAlgorithmIdentifier identifies a cryptographic algorithm per the
// IANA COSE algorithms registry.
type COSEAlgorithmIdentifier int

const (
	AlgorithmRS1   COSEAlgorithmIdentifier = -65535
	AlgorithmRS512 COSEAlgorithmIdentifier = -259
	AlgorithmRS384 COSEAlgorithmIdentifier = -258
	AlgorithmRS256 COSEAlgorithmIdentifier = -257
	AlgorithmPS512 COSEAlgorithmIdentifier = -39
	AlgorithmPS384 COSEAlgorithmIdentifier = -38
	AlgorithmPS256 COSEAlgorithmIdentifier = -37
	AlgorithmES512 COSEAlgorithmIdentifier = -36
	AlgorithmES384 COSEAlgorithmIdentifier = -35
	AlgorithmEdDSA COSEAlgorithmIdentifier = -8
	AlgorithmES256 COSEAlgorithmIdentifier = -7
)

// COSEEllipticCurve identifies an elliptic curve per the IANA COSE
// elliptic curves registry.
type COSEEllipticCurve int

const (
	CurveP256 COSEEllipticCurve = 1
	CurveP384 COSEEllipticCurve = 2
	CurveP521 COSEEllipticCurve = 3
)

// decodeCOSEKeyPrefix decodes a COSEKey occupying the start of buf,
// returning the key and the number of bytes the CBOR value consumed, so
// the caller (attested credential data parsing) can continue decoding
// whatever follows it in the same buffer.
func decodeCOSEKeyPrefix(buf []byte) (*COSEKey, int, error) {
	dec := cbor.NewDecoder(bytes.NewReader(buf))
	var key COSEKey
	if err := dec.Decode(&key); err != nil {
		return nil, 0, wrapErr(KindInvalidCOSEKey, err, "error unmarshaling COSE key")
	}
	n := dec.NumBytesRead()
	key.Raw = append([]byte(nil), buf[:n]...)
	return &key, n, nil
}

// decodeCOSEKey decodes a COSEKey that occupies the entirety of raw.
func decodeCOSEKey(raw []byte) (*COSEKey, error) {
	key, n, err := decodeCOSEKeyPrefix(raw)
	if err != nil {
		return nil, err
	}
	if n != len(raw) {
		return nil, newErr(KindInvalidCOSEKey, "%d trailing bytes after COSE key", len(raw)-n)
	}
	return key, nil
}

// VerifySignature verifies sig over message using the public key encoded
// in coseKey, dispatching on its declared algorithm.
func VerifySignature(coseKey *COSEKey, message, sig []byte) error {
	publicKey, err := DecodePublicKey(coseKey)
	if err != nil {
		return err
	}

	switch COSEAlgorithmIdentifier(coseKey.Alg) {
	case AlgorithmES256, AlgorithmES384, AlgorithmES512:
		pk, ok := publicKey.(*ecdsa.PublicKey)
		if !ok {
			return newErr(KindInvalidPublicKeyAlgorithm, "public key is not ECDSA but algorithm %d requires it", coseKey.Alg)
		}

		type ecdsaSignature struct{ R, S *big.Int }
		var parsed ecdsaSignature
		if _, err := asn1.Unmarshal(sig, &parsed); err != nil {
			return wrapErr(KindInvalidSignature, err, "unable to parse ECDSA signature")
		}

		var msgHash []byte
		switch COSEAlgorithmIdentifier(coseKey.Alg) {
		case AlgorithmES256:
			h := sha256.Sum256(message)
			msgHash = h[:]
		case AlgorithmES384:
			h := sha512.Sum384(message)
			msgHash = h[:]
		case AlgorithmES512:
			h := sha512.Sum512(message)
			msgHash = h[:]
		}
		if ecdsa.Verify(pk, msgHash, parsed.R, parsed.S) {
			return nil
		}
		return newErr(KindInvalidSignature, "ECDSA signature verification failed")

	case AlgorithmRS1, AlgorithmRS512, AlgorithmRS384, AlgorithmRS256,
		AlgorithmPS512, AlgorithmPS384, AlgorithmPS256:
		pk, ok := publicKey.(*rsa.PublicKey)
		if !ok {
			return newErr(KindInvalidPublicKeyAlgorithm, "public key is not RSA but algorithm %d requires it", coseKey.Alg)
		}

		var hash crypto.Hash
		switch COSEAlgorithmIdentifier(coseKey.Alg) {
		case AlgorithmRS512, AlgorithmPS512:
			hash = crypto.SHA512
		case AlgorithmRS384, AlgorithmPS384:
			hash = crypto.SHA384
		default:
			hash = crypto.SHA256
		}

		h := hash.New()
		h.Write(message)

		switch COSEAlgorithmIdentifier(coseKey.Alg) {
		case AlgorithmPS512, AlgorithmPS384, AlgorithmPS256:
			err = rsa.VerifyPSS(pk, hash, h.Sum(nil), sig, nil)
		default:
			err = rsa.VerifyPKCS1v15(pk, hash, h.Sum(nil), sig)
		}
		if err != nil {
			return wrapErr(KindInvalidSignature, err, "RSA signature verification failed")
		}
		return nil

	case AlgorithmEdDSA:
		pk, ok := publicKey.(ed25519.PublicKey)
		if !ok {
			return newErr(KindInvalidPublicKeyAlgorithm, "public key is not Ed25519 but algorithm %d requires it", coseKey.Alg)
		}
		if ed25519.Verify(pk, message, sig) {
			return nil
		}
		return newErr(KindInvalidSignature, "EdDSA signature verification failed")
	}
	return newErr(KindInvalidPublicKeyAlgorithm, "COSE algorithm %d not supported", coseKey.Alg)
}

// DecodePublicKey converts a COSEKey into a crypto.PublicKey of the
// concrete type its algorithm implies.
func DecodePublicKey(coseKey *COSEKey) (crypto.PublicKey, error) {
	switch COSEAlgorithmIdentifier(coseKey.Alg) {
	case AlgorithmES256, AlgorithmES384, AlgorithmES512:
		return decodeECDSAPublicKey(coseKey)
	case AlgorithmRS1, AlgorithmRS512, AlgorithmRS384, AlgorithmRS256,
		AlgorithmPS512, AlgorithmPS384, AlgorithmPS256:
		return decodeRSAPublicKey(coseKey)
	case AlgorithmEdDSA:
		return decodeEd25519PublicKey(coseKey)
	default:
		return nil, newErr(KindInvalidCOSEKey, "COSE algorithm %d not supported", coseKey.Alg)
	}
}

func decodeECDSAPublicKey(coseKey *COSEKey) (*ecdsa.PublicKey, error) {
	var curveID int
	if err := cbor.Unmarshal(coseKey.CrvOrNOrK, &curveID); err != nil {
		return nil, wrapErr(KindInvalidCOSEKey, err, "error decoding elliptic curve id")
	}

	var curve elliptic.Curve
	switch COSEEllipticCurve(curveID) {
	case CurveP256:
		curve = elliptic.P256()
	case CurveP384:
		curve = elliptic.P384()
	case CurveP521:
		curve = elliptic.P521()
	default:
		return nil, newErr(KindInvalidCOSEKey, "COSE elliptic curve %d not supported", curveID)
	}

	var xBytes, yBytes []byte
	if err := cbor.Unmarshal(coseKey.XOrE, &xBytes); err != nil {
		return nil, wrapErr(KindInvalidCOSEKey, err, "error decoding elliptic curve x parameter")
	}
	if err := cbor.Unmarshal(coseKey.Y, &yBytes); err != nil {
		return nil, wrapErr(KindInvalidCOSEKey, err, "error decoding elliptic curve y parameter")
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func decodeRSAPublicKey(coseKey *COSEKey) (*rsa.PublicKey, error) {
	var nBytes, eBytes []byte
	if err := cbor.Unmarshal(coseKey.CrvOrNOrK, &nBytes); err != nil {
		return nil, wrapErr(KindInvalidCOSEKey, err, "error decoding RSA modulus")
	}
	if err := cbor.Unmarshal(coseKey.XOrE, &eBytes); err != nil {
		return nil, wrapErr(KindInvalidCOSEKey, err, "error decoding RSA exponent")
	}

	e := new(big.Int).SetBytes(eBytes).Int64()

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e),
	}, nil
}

func decodeEd25519PublicKey(coseKey *COSEKey) (ed25519.PublicKey, error) {
	var kBytes []byte
	if err := cbor.Unmarshal(coseKey.XOrE, &kBytes); err != nil {
		return nil, wrapErr(KindInvalidCOSEKey, err, "error decoding Ed25519 public key")
	}
	return ed25519.PublicKey(kBytes), nil
}
