package lifecycle

import (
	"context"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
)

type BulkFailure struct {
	ID      string     `json:"id"`
	Code    model.Code `json:"code"`
	Message string     `json:"message"`
}

// BulkResult reports each target independently; there is no rollback.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

func (m *Manager) BulkCancel(ctx context.Context, actor model.Actor, ids []string) BulkResult {
	return bulk(ids, func(id string) error {
		_, err := m.Cancel(ctx, actor, id)
		return err
	})
}

func (m *Manager) BulkDelete(ctx context.Context, actor model.Actor, ids []string) BulkResult {
	return bulk(ids, func(id string) error {
		return m.Delete(ctx, actor, id)
	})
}

func bulk(ids []string, op func(string) error) BulkResult {
	res := BulkResult{Succeeded: []string{}, Failed: []BulkFailure{}}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if err := op(id); err != nil {
			e := model.AsError(err)
			res.Failed = append(res.Failed, BulkFailure{ID: id, Code: e.Code, Message: e.Message})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}
