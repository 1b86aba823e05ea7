package service

import (
	"context"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// ProfileResolver turns user refs held by chat records into display profiles.
// Refs the directory no longer knows are left out of the result.
type ProfileResolver struct {
	users UserDirectory
}

// NewProfileResolver creates a new ProfileResolver
func NewProfileResolver(users UserDirectory) *ProfileResolver {
	return &ProfileResolver{users: users}
}

// Resolve batch-resolves refs to profiles keyed by ref
func (r *ProfileResolver) Resolve(ctx context.Context, refs ...entity.UserRef) (map[entity.UserRef]*entity.Profile, error) {
	result := make(map[entity.UserRef]*entity.Profile, len(refs))
	if len(refs) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.String())
	}

	users, err := r.users.GetByIds(ctx, ids)
	if err != nil {
		log.CtxError(ctx, "resolve profiles failed: count=%d, error=%v", len(ids), err)
		return nil, errcode.ErrInternalServer
	}

	for _, user := range users {
		p := user.ToProfile()
		result[p.Id] = p
	}
	return result, nil
}

// ResolveOne resolves a single ref. Returns nil, nil when the user is unknown.
func (r *ProfileResolver) ResolveOne(ctx context.Context, ref entity.UserRef) (*entity.Profile, error) {
	if ref.IsZero() {
		return nil, nil
	}
	user, err := r.users.GetById(ctx, ref.String())
	if err != nil {
		log.CtxError(ctx, "resolve profile failed: user_id=%s, error=%v", ref, err)
		return nil, errcode.ErrInternalServer
	}
	if user == nil {
		return nil, nil
	}
	return user.ToProfile(), nil
}

// Display returns the profile for ref from profiles, or a placeholder
func Display(profiles map[entity.UserRef]*entity.Profile, ref entity.UserRef) *entity.Profile {
	if p, ok := profiles[ref]; ok {
		return p
	}
	return entity.UnknownProfile(ref)
}
