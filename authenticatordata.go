package wax

import (
	"bytes"
	"encoding/binary"

	"github.com/fxamacker/cbor/v2"
)

// Authenticator data flag bits, per the bit layout of the single flags
// byte following the RP ID hash.
const (
	flagUserPresent             byte = 1 << 0
	flagUserVerified            byte = 1 << 2
	flagAttestedCredentialData  byte = 1 << 6
	flagExtensionDataIncluded   byte = 1 << 7
)

// AttestedCredentialData is the variable-length block an authenticator
// includes during registration: its own identifier, the new credential's
// identifier, and its public key.
type AttestedCredentialData struct {
	AAGUID          AAGUID
	CredentialID    []byte
	CredentialPublicKey COSEKey
}

// AuthenticatorData is the parsed form of the fixed-and-variable-length
// binary structure an authenticator produces on every ceremony. Raw keeps
// the exact bytes that were parsed, since signatures are computed over
// that byte range verbatim and must never be reconstructed from the
// parsed fields.
type AuthenticatorData struct {
	Raw              []byte
	RPIDHash         [32]byte
	UserPresent      bool
	UserVerified     bool
	BackupEligible   bool
	BackupState      bool
	SignCount        uint32
	AttestedCredentialData *AttestedCredentialData
	Extensions       map[string]interface{}
	RawExtensions    cbor.RawMessage
}

// backup-state bits (BE/BS), present for completeness; not gated on by
// any ceremony in this package.
const (
	flagBackupEligible byte = 1 << 3
	flagBackupState    byte = 1 << 4
)

// DecodeAuthenticatorData parses a raw authenticator data blob, exposed
// for callers that want to inspect an assertion's authenticator data
// (sign count, flags) independent of running the full authentication
// ceremony.
func DecodeAuthenticatorData(raw []byte) (*AuthenticatorData, error) {
	return parseAuthenticatorData(raw)
}

// parseAuthenticatorData decodes raw per §6.1 of the authenticator data
// binary layout: 32-byte RP ID hash, 1 flags byte, 4-byte big-endian sign
// count, then an optional attested-credential-data block and an optional
// CBOR extensions block, both gated by flag bits.
func parseAuthenticatorData(raw []byte) (*AuthenticatorData, error) {
	if len(raw) < 37 {
		return nil, newErr(KindInvalidAuthenticatorData, "authenticator data is %d bytes, need at least 37", len(raw))
	}

	ad := &AuthenticatorData{Raw: raw}
	copy(ad.RPIDHash[:], raw[0:32])

	flags := raw[32]
	ad.UserPresent = flags&flagUserPresent != 0
	ad.UserVerified = flags&flagUserVerified != 0
	ad.BackupEligible = flags&flagBackupEligible != 0
	ad.BackupState = flags&flagBackupState != 0
	ad.SignCount = binary.BigEndian.Uint32(raw[33:37])

	cursor := 37

	if flags&flagAttestedCredentialData != 0 {
		acd, n, err := parseAttestedCredentialData(raw[cursor:])
		if err != nil {
			return nil, err
		}
		ad.AttestedCredentialData = acd
		cursor += n
	}

	if flags&flagExtensionDataIncluded != 0 {
		exts, n, err := decodeExtensionBlock(raw[cursor:])
		if err != nil {
			return nil, err
		}
		ad.Extensions = exts
		ad.RawExtensions = raw[cursor : cursor+n]
		cursor += n
	}

	if cursor != len(raw) {
		return nil, newErr(KindInvalidAuthenticatorData, "%d trailing bytes after parsing authenticator data", len(raw)-cursor)
	}

	return ad, nil
}

// parseAttestedCredentialData decodes the AAGUID, credential ID, and COSE
// public key block, returning the number of bytes consumed from buf.
func parseAttestedCredentialData(buf []byte) (*AttestedCredentialData, int, error) {
	if len(buf) < 18 {
		return nil, 0, newErr(KindInvalidAuthenticatorData, "attested credential data header is %d bytes, need at least 18", len(buf))
	}

	var aaguid AAGUID
	copy(aaguid[:], buf[0:16])

	credIDLen := int(binary.BigEndian.Uint16(buf[16:18]))
	cursor := 18
	if len(buf) < cursor+credIDLen {
		return nil, 0, newErr(KindInvalidAuthenticatorData, "credential id length %d exceeds remaining buffer", credIDLen)
	}
	credID := buf[cursor : cursor+credIDLen]
	cursor += credIDLen

	key, n, err := decodeCOSEKeyPrefix(buf[cursor:])
	if err != nil {
		return nil, 0, err
	}
	cursor += n

	return &AttestedCredentialData{
		AAGUID:              aaguid,
		CredentialID:        credID,
		CredentialPublicKey: *key,
	}, cursor, nil
}

// decodeExtensionBlock decodes a CBOR map of client/authenticator
// extension outputs, returning the number of bytes the CBOR value
// occupied so the caller can keep a raw-byte slice of just the
// extensions.
func decodeExtensionBlock(buf []byte) (map[string]interface{}, int, error) {
	dec := cbor.NewDecoder(bytes.NewReader(buf))
	var exts map[string]interface{}
	if err := dec.Decode(&exts); err != nil {
		return nil, 0, wrapErr(KindInvalidCBOR, err, "error unmarshaling extension outputs")
	}
	return exts, dec.NumBytesRead(), nil
}
