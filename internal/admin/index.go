// Package admin serves the review side: a live index of users and
// their uploaded clips, and the privileged delete operation.
package admin

import (
	"context"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/store"
)

// UserListing is one row of the dashboard: a user and their clips,
// newest first.
type UserListing struct {
	User  store.UserRecord   `json:"user"`
	Clips []store.ClipRecord `json:"clips"`
}

// Index is the in-memory join of the users and clips collections. The
// two change streams feed it independently; a clip whose owner has no
// user record yet is kept and surfaces once the user appears.
type Index struct {
	mu    sync.RWMutex
	users map[string]store.UserRecord
	clips map[string]store.ClipRecord
}

func NewIndex() *Index {
	return &Index{
		users: make(map[string]store.UserRecord),
		clips: make(map[string]store.ClipRecord),
	}
}

// Rebuild replaces the index contents from a full listing.
func (ix *Index) Rebuild(ctx context.Context, st store.ClipStore) error {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return err
	}
	clips, err := st.ListClips(ctx)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.users = make(map[string]store.UserRecord, len(users))
	for _, u := range users {
		ix.users[u.ID.Hex()] = u
	}
	ix.clips = make(map[string]store.ClipRecord, len(clips))
	for _, c := range clips {
		ix.clips[c.ID.Hex()] = c
	}
	return nil
}

// Watch tails both change streams until ctx is done. Each stream
// restarts the index feed independently; losing one does not stall the
// other.
func (ix *Index) Watch(ctx context.Context, st store.ClipStore) {
	go func() {
		if err := st.WatchClips(ctx, ix.ApplyClipChange); err != nil && ctx.Err() == nil {
			log.Errorf("clip change stream ended: %s", err)
		}
	}()
	go func() {
		if err := st.WatchUsers(ctx, ix.ApplyUserChange); err != nil && ctx.Err() == nil {
			log.Errorf("user change stream ended: %s", err)
		}
	}()
}

func (ix *Index) ApplyClipChange(ev store.ClipChange) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	switch ev.Kind {
	case store.ChangeDelete:
		delete(ix.clips, ev.DocID)
	default:
		if ev.Clip != nil {
			ix.clips[ev.DocID] = *ev.Clip
		}
	}
}

func (ix *Index) ApplyUserChange(ev store.UserChange) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	switch ev.Kind {
	case store.ChangeDelete:
		delete(ix.users, ev.DocID)
	default:
		if ev.User != nil {
			ix.users[ev.DocID] = *ev.User
		}
	}
}

// Snapshot joins clips to users by owner id. Users sort by email, each
// user's clips newest first.
func (ix *Index) Snapshot() []UserListing {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	byOwner := make(map[string][]store.ClipRecord)
	for _, c := range ix.clips {
		byOwner[c.OwnerID] = append(byOwner[c.OwnerID], c)
	}

	out := make([]UserListing, 0, len(ix.users))
	for id, u := range ix.users {
		clips := byOwner[id]
		sort.Slice(clips, func(i, j int) bool {
			return clips[i].CreatedAt.After(clips[j].CreatedAt)
		})
		out = append(out, UserListing{User: u, Clips: clips})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].User.Email < out[j].User.Email
	})
	return out
}

// ClipCount reports the number of indexed clips.
func (ix *Index) ClipCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.clips)
}
