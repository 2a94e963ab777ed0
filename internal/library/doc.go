// Package library models the host launcher's game collection as srmsync sees
// it: games, the library plugin each one belongs to, and the per-library
// groups that become Steam ROM Manager parsers.
//
// The host exports its collection as a JSON snapshot. FileSource reads that
// snapshot, Group buckets visible games by plugin, and Watcher reports when
// the snapshot changes on disk so the daemon can start a sync.
package library
