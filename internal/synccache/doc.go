// Package synccache persists the last successfully synced fingerprint of each
// library.
//
// Each library key maps to one file under the cache directory whose entire
// content is the fingerprint. A missing file means the library has never
// been synced. Writes go through a temporary file and a rename so a crash
// never leaves a half-written fingerprint behind.
package synccache
