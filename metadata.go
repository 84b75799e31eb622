package wax

import (
	"bytes"
	"encoding/hex"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
	cosekey "github.com/ldclabs/cose/key"
)

// MetadataStatement is the subset of a FIDO Metadata Service statement
// wax consults when deciding whether an attestation's trust path chains
// to a root it recognizes.
type MetadataStatement struct {
	AAGUID                       AAGUID
	Description                  string
	AttestationRootCertificates  [][]byte // DER-encoded
	AttestationCertificateKeyIDs []string
	AttestationTypes             []string // subset of {"basic_full", "attca"}
	KeyProtection                []string
	UserVerificationDetails      []map[string]interface{}
	Capabilities                 cosekey.Key // optional COSE-described capability descriptor, pass-through only
}

// resolveAttestationType derives the policy-relevant AttestationType a
// matched metadata statement yields once its trust path has verified:
// basic if the statement lists basic_full, else attca if it lists attca,
// else uncertain. basic_full and attca are assumed mutually exclusive per
// authenticator; when a statement lists both, basic_full wins.
func resolveAttestationType(statement *MetadataStatement) AttestationType {
	var hasAttCA bool
	for _, t := range statement.AttestationTypes {
		switch t {
		case "basic_full":
			return AttestationBasic
		case "attca":
			hasAttCA = true
		}
	}
	if hasAttCA {
		return AttestationAttCA
	}
	return AttestationUncertain
}

// MetadataSource resolves authenticator metadata by either of the two
// keys an attestation statement can carry: an AAGUID (packed, tpm) or an
// attestation certificate key identifier (fido-u2f, android-safetynet
// lack an AAGUID in their attested credential data on older
// authenticators). Implementations must be safe for concurrent use by
// multiple ceremonies.
type MetadataSource interface {
	ByAAGUID(AAGUID) (*MetadataStatement, bool)
	ByACKI(keyID string) (*MetadataStatement, bool)
}

type metadataSnapshot struct {
	byAAGUID map[AAGUID]*MetadataStatement
	byACKI   map[string]*MetadataStatement
}

// StaticMetadataIndex is a MetadataSource backed by an in-memory index
// that can be replaced wholesale (e.g. on a periodic metadata service
// blob refresh) without blocking readers mid-lookup. Readers always see
// either the old index or the new one, never a partially built one.
type StaticMetadataIndex struct {
	snapshot atomic.Value // holds *metadataSnapshot
}

// NewStaticMetadataIndex builds an index from a set of statements,
// indexing each by its AAGUID and by every attestation certificate key
// identifier it declares.
func NewStaticMetadataIndex(statements []*MetadataStatement) *StaticMetadataIndex {
	idx := &StaticMetadataIndex{}
	idx.Replace(statements)
	return idx
}

// Replace atomically swaps the index's contents. Concurrent ByAAGUID and
// ByACKI calls from other goroutines observe either the prior snapshot or
// this one, never a mix.
func (idx *StaticMetadataIndex) Replace(statements []*MetadataStatement) {
	snap := &metadataSnapshot{
		byAAGUID: make(map[AAGUID]*MetadataStatement, len(statements)),
		byACKI:   make(map[string]*MetadataStatement),
	}
	for _, s := range statements {
		if !s.AAGUID.IsZero() {
			snap.byAAGUID[s.AAGUID] = s
		}
		for _, kid := range s.AttestationCertificateKeyIDs {
			snap.byACKI[normalizeKeyID(kid)] = s
		}
	}
	idx.snapshot.Store(snap)
}

func (idx *StaticMetadataIndex) load() *metadataSnapshot {
	snap, _ := idx.snapshot.Load().(*metadataSnapshot)
	if snap == nil {
		return &metadataSnapshot{byAAGUID: map[AAGUID]*MetadataStatement{}, byACKI: map[string]*MetadataStatement{}}
	}
	return snap
}

// ByAAGUID implements MetadataSource.
func (idx *StaticMetadataIndex) ByAAGUID(a AAGUID) (*MetadataStatement, bool) {
	s, ok := idx.load().byAAGUID[a]
	return s, ok
}

// ByACKI implements MetadataSource.
func (idx *StaticMetadataIndex) ByACKI(keyID string) (*MetadataStatement, bool) {
	s, ok := idx.load().byACKI[normalizeKeyID(keyID)]
	return s, ok
}

// DecodeCapabilities decodes a metadata statement's optional COSE-encoded
// capability descriptor, when a metadata source publishes one alongside
// its JSON fields rather than inline, for assignment to
// MetadataStatement.Capabilities before the statement is indexed.
func DecodeCapabilities(raw []byte) (cosekey.Key, error) {
	var k cosekey.Key
	dec := cbor.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&k); err != nil {
		return cosekey.Key{}, wrapErr(KindInvalidCBOR, err, "error unmarshaling metadata capability descriptor")
	}
	return k, nil
}

func normalizeKeyID(kid string) string {
	if decoded, err := hex.DecodeString(kid); err == nil {
		return hex.EncodeToString(decoded)
	}
	return kid
}
