// Package refresh owns the lifecycle of opaque refresh tokens: generation,
// validation, single-use rotation and revocation.
//
// Tokens are stored in Redis so that every service instance observes the
// same state. A token is the pair "<record id>.<secret>"; only the SHA-256
// of the secret is stored, so a leaked store dump cannot be replayed.
//
// Rotation is a single Lua script that validates, deletes the predecessor
// and writes the successor atomically. Two concurrent rotations of the
// same token therefore produce exactly one winner; the loser observes the
// predecessor as already gone. A token that has been rotated away is
// forever invalid, which is what makes replay detectable.
package refresh
