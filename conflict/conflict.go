// Package conflict implements last-writer-wins resolution between a local
// and a remote version of the same entity.
package conflict

// Winner identifies which side of a conflict is kept.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// Resolution is the outcome of comparing two modification timestamps.
// It is a plain value and is never persisted.
type Resolution struct {
	Winner          Winner
	LocalTimestamp  int64
	RemoteTimestamp int64
}

// Resolve compares two last-modified timestamps (milliseconds since the
// Unix epoch, any numeric value is valid). The remote side wins only when
// it is strictly newer; on a tie the local side wins so that in-flight
// local edits are never clobbered by an equally-old remote read.
func Resolve(localTS, remoteTS int64) Resolution {
	r := Resolution{
		Winner:          WinnerLocal,
		LocalTimestamp:  localTS,
		RemoteTimestamp: remoteTS,
	}
	if remoteTS > localTS {
		r.Winner = WinnerRemote
	}
	return r
}
