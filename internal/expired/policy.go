package expired

import (
	"context"

	"github.com/tazhibayda/expired-service/internal/domain"
)

type Allowlist interface {
	Contains(ctx context.Context, categoryID int64) (bool, error)
}

type Policy struct {
	Categories           Allowlist
	AllowOnAllCategories bool
}

// CanExpire: the category gate, then staff, or the author of an open topic.
// A nil actor is anonymous.
func (p *Policy) CanExpire(ctx context.Context, actor *domain.User, t *domain.Topic) (bool, error) {
	if !p.AllowOnAllCategories {
		ok, err := p.Categories.Contains(ctx, t.CategoryID)
		if err != nil || !ok {
			return false, err
		}
	}
	if actor.Staff() {
		return true, nil
	}
	return actor != nil && !t.Closed && t.UserID == actor.ID, nil
}

func (p *Policy) CanUnexpire(ctx context.Context, actor *domain.User, t *domain.Topic, postFields domain.Fields) (bool, error) {
	ok, err := p.CanExpire(ctx, actor, t)
	if err != nil || !ok {
		return false, err
	}
	return IsExpiredPost(postFields), nil
}
