// Package events defines the observer surface the Cache notifies on
// every mutating operation: entry added/removed, chunk hash known,
// chunk removed, and shared-directory added/removed.
package events

import "github.com/lanshare/storagecore/internal/fsentry"

// Observer receives synchronous notifications from the Cache. Every
// method must return promptly: delivery happens on the mutating
// goroutine, never while the Cache holds its write lock, but still
// inline with the operation that triggered it. An Observer must not
// call back into the Cache from within any of these methods.
type Observer interface {
	OnEntryAdded(entry fsentry.Entry)
	OnEntryRemoved(entry fsentry.Entry)
	OnChunkHashKnown(chunk *fsentry.Chunk)
	OnChunkRemoved(chunk *fsentry.Chunk)
	OnSharedDirectoryAdded(dir *fsentry.SharedDirectory)
	OnSharedDirectoryRemoved(dir *fsentry.SharedDirectory)
}

// NopObserver implements Observer with no-op methods; embed it to
// implement only the events a particular observer cares about.
type NopObserver struct{}

func (NopObserver) OnEntryAdded(fsentry.Entry)                        {}
func (NopObserver) OnEntryRemoved(fsentry.Entry)                      {}
func (NopObserver) OnChunkHashKnown(*fsentry.Chunk)                   {}
func (NopObserver) OnChunkRemoved(*fsentry.Chunk)                     {}
func (NopObserver) OnSharedDirectoryAdded(*fsentry.SharedDirectory)   {}
func (NopObserver) OnSharedDirectoryRemoved(*fsentry.SharedDirectory) {}
