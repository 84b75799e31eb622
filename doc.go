/*
Package wax implements the server-side core of a WebAuthn (FIDO2) relying
party: challenge generation, the registration and authentication ceremony
state machines, and verification of the `none`, `packed`, `fido-u2f`, and
`android-safetynet` attestation statement formats (`tpm` is recognized by
shape only).

wax is deliberately decoupled from net/http, session storage, and the
credential database. Callers own those concerns and hand wax opaque blobs:
a Challenge, a raw CBOR attestation object or raw authenticator data, and
the raw client data JSON the browser produced. wax returns either a
verified credential (public key plus attestation result) or an
authentication decision (accept/reject plus the authenticator's signature
counter).

The package performs no I/O of its own. Every ceremony is a pure function
of its inputs, the Challenge, and a MetadataSource snapshot, so concurrent
ceremonies never need to coordinate.
*/
package wax
