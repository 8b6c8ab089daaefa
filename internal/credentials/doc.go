// Package credentials persists the client's authentication state.
//
// A Store is a flat string key/value space with per-key expiry, modelled on
// browser cookies: every write carries SameSite and Secure attributes and an
// optional expiry after which the entry is never returned again. The store
// holds no validation logic; deciding whether stored credentials are usable
// is the job of the auth package.
//
// Three backends are provided:
//   - MemoryStore keeps entries in process memory (tests, one-shot runs)
//   - FileStore persists entries to a single 0600 JSON file
//   - RedisStore shares entries between processes through redis
//
// SECURITY: values are never logged. Writes and removals emit
// SECURITY_AUDIT log lines carrying key names only.
package credentials
