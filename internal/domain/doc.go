// Package domain holds the types shared across sealchat: key material,
// prekey bundles, ratchet state, wire envelopes, and the storage interfaces
// the services are built against.
package domain
