// Package audit records every dispatched tool call for later inspection.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/fentz26/relay/internal/models"
	"github.com/fentz26/relay/internal/store"
)

// detailLimit caps how much result or error text one record keeps.
const detailLimit = 2048

// Recorder writes invocation audit records.
type Recorder struct {
	store *store.Store
}

// NewRecorder creates a new audit recorder.
func NewRecorder(s *store.Store) *Recorder {
	return &Recorder{store: s}
}

// RecordSuccess writes an audit record for a completed invocation.
func (r *Recorder) RecordSuccess(tool, origin, serverID string, args interface{}, detail string, duration time.Duration) (*models.InvocationRecord, error) {
	return r.store.AppendInvocation(models.InvocationRecord{
		Tool:       tool,
		Origin:     origin,
		ServerID:   serverID,
		ArgsHash:   hashArgs(args),
		Status:     models.InvocationStatusOK,
		Detail:     truncate(detail),
		DurationMS: duration.Milliseconds(),
	})
}

// RecordFailure writes an audit record for a failed invocation.
func (r *Recorder) RecordFailure(tool, origin, serverID string, args interface{}, errorKind, detail string, duration time.Duration) (*models.InvocationRecord, error) {
	return r.store.AppendInvocation(models.InvocationRecord{
		Tool:       tool,
		Origin:     origin,
		ServerID:   serverID,
		ArgsHash:   hashArgs(args),
		Status:     models.InvocationStatusError,
		ErrorKind:  errorKind,
		Detail:     truncate(detail),
		DurationMS: duration.Milliseconds(),
	})
}

// hashArgs creates a SHA256 hash of the arguments for reproducibility.
func hashArgs(args interface{}) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func truncate(s string) string {
	if len(s) > detailLimit {
		return s[:detailLimit]
	}
	return s
}
