// Package pebblestore wraps the Pebble key/value engine behind the small
// surface the rest of the service needs: durable batch commits with a
// configurable fsync policy, point reads, snapshots, and bounded iterators.
//
// The commit log, the access registry and the blob registry share one DB;
// key prefixes keep their spaces apart. Durability policy is fixed at Open
// time: FsyncModeAlways syncs the WAL on every commit, FsyncModeInterval
// lets Pebble coalesce syncs within a window (group commit), FsyncModeNever
// leaves syncing to Pebble's own policies.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
package pebblestore
