package models

import "time"

type User struct {
	ID         string
	UserName   string
	CurrentSeq int64
}

// SyncStatus is the account's newest change sequence and the last device
// whose write was accepted. LastSyncAt is nil until the first write.
type SyncStatus struct {
	CurrentSeq     int64
	LastSyncAt     *time.Time
	LastSyncDevice string
}
