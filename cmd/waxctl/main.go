// Command waxctl is a small demonstration and diagnostic tool for the wax
// relying party core: it decodes a CBOR attestation object or an
// authenticator data blob from standard input and reports what wax's
// parsers make of it (no attestation verifier is run), without standing
// up an HTTP server or a credential database.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ericsullivan/wax"
)

func main() {
	var (
		mode     string
		metaPath string
	)
	flag.StringVar(&mode, "mode", "attestation", `what stdin contains: "attestation" or "authenticatordata"`)
	flag.StringVar(&metaPath, "metadata", "", "optional path to a JSON file of metadata statements")
	flag.Parse()

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("waxctl: error reading stdin: %v", err)
	}

	decoded, err := decodeInput(raw)
	if err != nil {
		log.Fatalf("waxctl: error decoding input as base64 or raw bytes: %v", err)
	}

	meta := wax.NewStaticMetadataIndex(nil)
	if metaPath != "" {
		if err := loadMetadata(meta, metaPath); err != nil {
			log.Fatalf("waxctl: error loading metadata from %s: %v", metaPath, err)
		}
	}

	switch mode {
	case "attestation":
		reportAttestation(decoded, meta)
	case "authenticatordata":
		reportAuthenticatorData(decoded)
	default:
		log.Fatalf("waxctl: unknown -mode %q", mode)
	}
}

// decodeInput accepts either raw bytes or base64url/base64-encoded text,
// since browser-collected CBOR blobs are usually shuttled around as
// base64url strings in JSON before reaching a tool like this.
func decodeInput(raw []byte) ([]byte, error) {
	trimmed := trimSpace(raw)
	if looksLikeBase64(trimmed) {
		if decoded, err := base64.RawURLEncoding.DecodeString(string(trimmed)); err == nil {
			return decoded, nil
		}
		if decoded, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil {
			return decoded, nil
		}
	}
	return raw, nil
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

func looksLikeBase64(b []byte) bool {
	for _, c := range b {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '+', c == '/', c == '=':
		default:
			return false
		}
	}
	return len(b) > 0
}

type jsonMetadataStatement struct {
	AAGUID                         string   `json:"aaguid"`
	Description                    string   `json:"description"`
	AttestationRootCertificatesB64 []string `json:"attestationRootCertificates"`
	AttestationCertificateKeyIDs   []string `json:"attestationCertificateKeyIds"`
	AttestationTypes               []string `json:"attestationTypes"`
	CapabilitiesB64                string   `json:"capabilities"`
}

func loadMetadata(idx *wax.StaticMetadataIndex, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var entries []jsonMetadataStatement
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return err
	}

	statements := make([]*wax.MetadataStatement, 0, len(entries))
	for _, e := range entries {
		aaguid, err := wax.ParseAAGUID(e.AAGUID)
		if err != nil {
			return fmt.Errorf("aaguid %q: %w", e.AAGUID, err)
		}
		roots := make([][]byte, 0, len(e.AttestationRootCertificatesB64))
		for _, r := range e.AttestationRootCertificatesB64 {
			der, err := base64.StdEncoding.DecodeString(r)
			if err != nil {
				return fmt.Errorf("root certificate for %q: %w", e.AAGUID, err)
			}
			roots = append(roots, der)
		}
		statement := &wax.MetadataStatement{
			AAGUID:                       aaguid,
			Description:                  e.Description,
			AttestationRootCertificates:  roots,
			AttestationCertificateKeyIDs: e.AttestationCertificateKeyIDs,
			AttestationTypes:             e.AttestationTypes,
		}
		if e.CapabilitiesB64 != "" {
			raw, err := base64.StdEncoding.DecodeString(e.CapabilitiesB64)
			if err != nil {
				return fmt.Errorf("capabilities for %q: %w", e.AAGUID, err)
			}
			capabilities, err := wax.DecodeCapabilities(raw)
			if err != nil {
				return fmt.Errorf("capabilities for %q: %w", e.AAGUID, err)
			}
			statement.Capabilities = capabilities
		}
		statements = append(statements, statement)
	}
	idx.Replace(statements)
	return nil
}

func reportAttestation(raw []byte, meta *wax.StaticMetadataIndex) {
	obj, err := wax.DecodeAttestationObject(raw)
	if err != nil {
		log.Fatalf("waxctl: error decoding attestation object: %v", err)
	}

	fmt.Printf("format: %s\n", obj.Format)
	fmt.Printf("sign count: %d\n", obj.AuthenticatorData.SignCount)
	fmt.Printf("user present: %t, user verified: %t\n", obj.AuthenticatorData.UserPresent, obj.AuthenticatorData.UserVerified)

	if acd := obj.AuthenticatorData.AttestedCredentialData; acd != nil {
		fmt.Printf("aaguid: %s\n", acd.AAGUID)
		fmt.Printf("credential id (base64url): %s\n", base64.RawURLEncoding.EncodeToString(acd.CredentialID))
		if statement, ok := meta.ByAAGUID(acd.AAGUID); ok {
			fmt.Printf("metadata match: %s\n", statement.Description)
			if statement.Capabilities != nil {
				fmt.Printf("capabilities: %v\n", statement.Capabilities)
			}
		} else {
			fmt.Println("metadata match: none loaded for this aaguid")
		}
	}
}

func reportAuthenticatorData(raw []byte) {
	authData, err := wax.DecodeAuthenticatorData(raw)
	if err != nil {
		log.Fatalf("waxctl: error decoding authenticator data: %v", err)
	}
	fmt.Printf("rp id hash (hex): %x\n", authData.RPIDHash)
	fmt.Printf("sign count: %d\n", authData.SignCount)
	fmt.Printf("user present: %t, user verified: %t\n", authData.UserPresent, authData.UserVerified)
}
