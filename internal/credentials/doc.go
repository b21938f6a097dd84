// Package credentials stores the access credentials obtained through the
// authorization flow, keyed by (subject, service).
//
// SECURITY: records hold live bearer tokens. Stores never log token values,
// file-backed stores write with 0600 permissions inside a 0700 directory,
// and Record formats itself with the token redacted.
package credentials
