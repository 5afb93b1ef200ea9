package engine

import (
	"context"
	"fmt"

	"github.com/openlift/syncengine/entity"
	"github.com/openlift/syncengine/idmap"
	"github.com/openlift/syncengine/queue"
)

// push drains the eligible queue items to the remote backend. The batch is
// a snapshot taken at entry; items enqueued while the batch runs are
// picked up by the next sync. One item's failure never stops the batch:
// it is recorded against the item and processing continues.
func (e *Engine) push(ctx context.Context, remote RemoteClient, q *queue.Queue, m *idmap.Store) (int, []string) {
	items := q.EligibleItems()
	if len(items) == 0 {
		return 0, nil
	}

	var (
		pushed int
		errs   []string
	)
	for _, it := range items {
		if err := e.pushItem(ctx, remote, m, it); err != nil {
			// The original message is kept verbatim so callers can
			// classify failures by substring.
			errs = append(errs, err.Error())
			e.logger.Warn("push item failed",
				"entity_type", it.EntityType, "entity_id", it.EntityID,
				"operation", it.Operation, "retry_count", it.RetryCount+1,
				"error", err)
			if perr := q.RecordFailure(ctx, it.ID, err.Error()); perr != nil {
				errs = append(errs, perr.Error())
			}
			continue
		}
		if perr := q.RecordSuccess(ctx, it.ID); perr != nil {
			errs = append(errs, perr.Error())
		}
		pushed++
	}
	return pushed, errs
}

func (e *Engine) pushItem(ctx context.Context, remote RemoteClient, m *idmap.Store, it queue.Item) error {
	switch it.Operation {
	case entity.OpCreate:
		payload, err := resolveRefs(m, it.EntityType, it.Payload)
		if err != nil {
			return err
		}
		remoteID, err := remote.Create(ctx, it.EntityType, payload)
		if err != nil {
			return err
		}
		// The mapping must exist before the next item in the batch is
		// attempted: children enqueued after this create resolve their
		// parent reference through it.
		return m.SetMapping(ctx, it.EntityID, remoteID, it.EntityType)

	case entity.OpUpdate:
		remoteID, ok := m.GetRemoteID(it.EntityID)
		if !ok {
			return fmt.Errorf("no mapping found for %s %s", it.EntityType, it.EntityID)
		}
		payload, err := resolveRefs(m, it.EntityType, it.Payload)
		if err != nil {
			return err
		}
		return remote.Update(ctx, it.EntityType, remoteID, payload)

	case entity.OpDelete:
		remoteID, ok := m.GetRemoteID(it.EntityID)
		if !ok {
			// Nothing was ever created remotely: deleting is a no-op
			// that still succeeds and clears the queue item.
			return nil
		}
		if err := remote.Delete(ctx, it.EntityType, remoteID); err != nil {
			return err
		}
		return m.RemoveMapping(ctx, it.EntityID)
	}
	return fmt.Errorf("unknown operation %q", it.Operation)
}

// resolveRefs returns a copy of payload with every parent-reference field
// translated from a local id to its remote id. A reference to an entity
// that has not been pushed yet fails the item with a "parent not synced"
// condition; the next sync retries once the parent's mapping exists.
func resolveRefs(m *idmap.Store, kind entity.Kind, payload map[string]any) (map[string]any, error) {
	refs := kind.RefFields()
	if len(refs) == 0 {
		return payload, nil
	}

	resolved := make(map[string]any, len(payload))
	for k, v := range payload {
		resolved[k] = v
	}
	for _, field := range refs {
		raw, ok := resolved[field]
		if !ok {
			continue
		}
		localID, ok := raw.(string)
		if !ok || localID == "" {
			continue
		}
		remoteID, ok := m.GetRemoteID(localID)
		if !ok {
			return nil, fmt.Errorf("parent not synced: %s field %s references unmapped local id %q", kind, field, localID)
		}
		resolved[field] = remoteID
	}
	return resolved, nil
}
