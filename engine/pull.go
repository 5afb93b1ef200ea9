package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/openlift/syncengine/conflict"
	"github.com/openlift/syncengine/entity"
	"github.com/openlift/syncengine/idmap"
	"github.com/openlift/syncengine/storage"
)

// pull fetches the authoritative snapshot for every tracked collection and
// reconciles it into the local store. Collections are walked parent-first
// so that a child's reference fields can be localized against mappings
// created earlier in the same pull. A failed collection query contributes
// an error but never stops the remaining collections.
func (e *Engine) pull(ctx context.Context, remote RemoteClient, userID string, m *idmap.Store) (int, []string) {
	var (
		pulled int
		errs   []string
	)

	for _, kind := range entity.Hierarchy {
		records, err := remote.List(ctx, kind, userID)
		if err != nil {
			errs = append(errs, err.Error())
			e.logger.Warn("pull collection failed", "entity_type", kind, "error", err)
			continue
		}

		seen := make(map[string]bool, len(records))
		for _, rr := range records {
			seen[rr.ID] = true
			applied, err := e.reconcileRemote(ctx, m, kind, rr)
			if err != nil {
				errs = append(errs, err.Error())
				continue
			}
			if applied {
				pulled++
			}
		}

		errs = append(errs, e.deleteAbsent(ctx, m, kind, seen)...)
	}

	return pulled, errs
}

// reconcileRemote merges one remote entity into the local store. It
// reports whether a local write was applied.
func (e *Engine) reconcileRemote(ctx context.Context, m *idmap.Store, kind entity.Kind, rr RemoteRecord) (bool, error) {
	localID, ok := m.GetLocalID(rr.ID)
	if !ok {
		// First sight of this remote entity: materialize it locally
		// under a fresh local id and record the mapping.
		localID = uuid.NewString()
		rec := storage.Record{
			Kind:      kind,
			LocalID:   localID,
			Fields:    e.localizeRefs(m, kind, rr.Fields),
			UpdatedAt: rr.UpdatedAt,
		}
		if err := e.local.Put(ctx, rec); err != nil {
			return false, err
		}
		if err := m.SetMapping(ctx, localID, rr.ID, kind); err != nil {
			return false, err
		}
		return true, nil
	}

	local, err := e.local.Get(ctx, kind, localID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if err == nil {
		res := conflict.Resolve(local.UpdatedAt, rr.UpdatedAt)
		if res.Winner == conflict.WinnerLocal {
			// The pending local push, if any, reconciles divergence on
			// its own next successful push.
			return false, nil
		}
		e.metrics.RecordConflicts(1)
	}
	// Either the remote side won or the entity is mapped but missing
	// locally (a partially applied earlier pull): overwrite local state
	// with the remote snapshot under the existing mapping.
	rec := storage.Record{
		Kind:      kind,
		LocalID:   localID,
		Fields:    e.localizeRefs(m, kind, rr.Fields),
		UpdatedAt: rr.UpdatedAt,
	}
	if err := e.local.Put(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

// deleteAbsent removes local entities of a kind that are mapped to a
// remote id missing from the snapshot: the authoritative side deleted
// them. Unmapped local entities are untouched; they have simply never
// been pushed. Child mappings and queue items are deliberately not
// cascaded here; the backend cascades child deletion and the next pull's
// snapshot diff removes the local children.
func (e *Engine) deleteAbsent(ctx context.Context, m *idmap.Store, kind entity.Kind, seen map[string]bool) []string {
	records, err := e.local.List(ctx, kind)
	if err != nil {
		return []string{err.Error()}
	}

	var errs []string
	for _, rec := range records {
		remoteID, ok := m.GetRemoteID(rec.LocalID)
		if !ok || seen[remoteID] {
			continue
		}
		if err := e.local.Delete(ctx, kind, rec.LocalID); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if err := m.RemoveMapping(ctx, rec.LocalID); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// localizeRefs returns a copy of fields with reference fields translated
// from remote ids back to local ids. Parent kinds are pulled first, so the
// mapping normally exists; an unknown remote id is kept as-is rather than
// failing the record.
func (e *Engine) localizeRefs(m *idmap.Store, kind entity.Kind, fields map[string]any) map[string]any {
	localized := make(map[string]any, len(fields))
	for k, v := range fields {
		localized[k] = v
	}
	for _, field := range kind.RefFields() {
		raw, ok := localized[field]
		if !ok {
			continue
		}
		remoteID, ok := raw.(string)
		if !ok || remoteID == "" {
			continue
		}
		if localID, ok := m.GetLocalID(remoteID); ok {
			localized[field] = localID
		}
	}
	return localized
}
