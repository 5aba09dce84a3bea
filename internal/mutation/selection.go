package mutation

import (
	"fmt"
	"slices"

	"github.com/roach88/emsync/internal/model"
)

// SelectionPayload is the body of updateUserPostSelections.
type SelectionPayload struct {
	UserID  model.ID   `json:"User_ID"`
	PostIDs []model.ID `json:"Post_IDs"`
}

// TogglePostSelection adds post to the user's selection, or removes it if
// already selected. The payload carries the user's whole new selection.
func TogglePostSelection(s model.Snapshot, id model.Identity, post model.ID) (Plan, error) {
	if id.UserID.IsPending() {
		return Plan{}, ErrNoIdentity
	}
	if post.IsPending() {
		return Plan{}, fmt.Errorf("post %s: %w", post, ErrNotFound)
	}

	current := s.PostSelections.Get(id.UserID)
	var selected []model.ID
	if slices.Contains(current, post) {
		selected = slices.DeleteFunc(slices.Clone(current), func(p model.ID) bool { return p == post })
	} else {
		selected = append(slices.Clone(current), post)
	}
	return SetPostSelection(s, id.UserID, selected)
}

// SetPostSelection replaces user's selection.
func SetPostSelection(s model.Snapshot, user model.ID, posts []model.ID) (Plan, error) {
	if user.IsPending() {
		return Plan{}, ErrNoIdentity
	}
	posts = model.Dedupe(posts)
	if posts == nil {
		posts = []model.ID{}
	}

	next := s.Clone()
	next.PostSelections = next.PostSelections.With(user, posts)
	return Plan{
		Action:  model.ActionUpdateUserPostSelections,
		Payload: SelectionPayload{UserID: user, PostIDs: posts},
		Next:    next,
	}, nil
}
