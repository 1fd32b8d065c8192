// Package conflict decides between two versions of the same place record.
// Everything here is pure: no storage, no clock, no network.
package conflict

import (
	"time"

	"github.com/dmitrijs2005/placesync/internal/client/models"
)

// Side names where the winning value came from.
type Side int

const (
	Local Side = iota
	Remote
)

func (s Side) String() string {
	if s == Local {
		return "local"
	}
	return "remote"
}

// Rule names the step of the algorithm that decided the outcome.
type Rule string

const (
	RuleDeletion  Rule = "deletion"
	RuleVersion   Rule = "version"
	RuleTimestamp Rule = "timestamp"
	RuleTie       Rule = "tie"
)

type Resolution struct {
	Winner Side
	Rule   Rule
	// Record carries the winner's fields with SyncVersion set to
	// max(local, remote) + 1. Sync bookkeeping is copied from the local side.
	Record *models.PlaceRecord
}

// Resolve picks the winner of local and remote:
//
//  1. a deleted side wins when its version is at least the other's;
//  2. otherwise the higher SyncVersion wins;
//  3. on equal versions the later LastModifiedAt wins, and an exact tie goes
//     to the remote side.
func Resolve(local, remote *models.PlaceRecord) Resolution {
	winner, rule := pick(local, remote)

	src := local
	if winner == Remote {
		src = remote
	}

	rec := src.Clone()
	rec.SyncVersion = max(local.SyncVersion, remote.SyncVersion) + 1
	rec.ServerVersion = local.ServerVersion
	rec.IsSynced = local.IsSynced

	return Resolution{Winner: winner, Rule: rule, Record: rec}
}

func pick(local, remote *models.PlaceRecord) (Side, Rule) {
	localDel := local.IsDeleted && local.SyncVersion >= remote.SyncVersion
	remoteDel := remote.IsDeleted && remote.SyncVersion >= local.SyncVersion
	switch {
	case localDel && !remoteDel:
		return Local, RuleDeletion
	case remoteDel && !localDel:
		return Remote, RuleDeletion
	}

	switch {
	case local.SyncVersion > remote.SyncVersion:
		return Local, RuleVersion
	case remote.SyncVersion > local.SyncVersion:
		return Remote, RuleVersion
	}

	switch {
	case local.LastModifiedAt.After(remote.LastModifiedAt):
		return Local, RuleTimestamp
	case remote.LastModifiedAt.After(local.LastModifiedAt):
		return Remote, RuleTimestamp
	}
	return Remote, RuleTie
}

// ResolveDuplicate handles two active records with different ids for the
// same region, typically created offline on two devices. The most recently
// modified one stays canonical; on equal timestamps the smaller id wins so
// every device reaches the same answer. The loser is returned as a pending
// tombstone stamped with now.
func ResolveDuplicate(a, b *models.PlaceRecord, now time.Time) (canonical, loser *models.PlaceRecord) {
	canonical, loser = a, b
	switch {
	case b.LastModifiedAt.After(a.LastModifiedAt):
		canonical, loser = b, a
	case a.LastModifiedAt.Equal(b.LastModifiedAt) && b.ID < a.ID:
		canonical, loser = b, a
	}

	loser = loser.Clone()
	loser.IsDeleted = true
	loser.Touch(now)
	return canonical, loser
}
