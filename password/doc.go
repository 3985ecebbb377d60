// Package password hashes and checks account passwords with Argon2id.
//
// Hashes use the PHC string layout
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// so parameters travel with each stored hash and [Hasher.NeedsRehash] can
// flag hashes produced under weaker settings.
//
// The dealer API owns credential storage in production. This package backs
// the in-process fake API used by tests and local CLI runs.
package password
