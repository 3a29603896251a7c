// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyset loads the console key material needed to seal
// content archives.
//
// Keys come from a "prod.keys" style text file: one "name = hex" pair
// per line, with '#' and ';' starting comments. Only two kinds of key
// are used here:
//
//   - header_key: the 32-byte AES-XTS key for archive headers
//   - key_area_key_application_XX: the 16-byte key-area key for master
//     key revision XX
//
// The file may be stored age-encrypted. [Load] decrypts any path ending
// in ".age" with the X25519 identities of an identity file, or with a
// passphrase through [LoadWithIdentities] and [PassphraseIdentity].
//
// Every failure carries [fault.KeyDerivation]: without keys no package
// can be created, so callers abort on any error from this package.
package keyset
