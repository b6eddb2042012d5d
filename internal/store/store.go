// Package store persists clip metadata. Clip bytes live in remote
// storage; only the pointer record is kept here.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("record not found")

// ClipRecord is one uploaded clip. CreatedAt is assigned by the store
// on insert, never by the caller.
type ClipRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	URL       string             `bson:"url" json:"url"`
	Key       string             `bson:"key" json:"key"`
	Filename  string             `bson:"filename" json:"filename"`
	SizeBytes int64              `bson:"size_bytes" json:"sizeBytes"`
	MimeType  string             `bson:"mime_type" json:"mimeType"`
	OwnerID   string             `bson:"owner_id" json:"ownerId"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

type UserRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email       string             `bson:"email" json:"email"`
	DisplayName string             `bson:"display_name" json:"displayName"`
	Role        string             `bson:"role" json:"role"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

// ChangeKind mirrors the change-stream operation types consumers care
// about; everything else is folded into "replace".
type ChangeKind string

const (
	ChangeInsert  ChangeKind = "insert"
	ChangeDelete  ChangeKind = "delete"
	ChangeReplace ChangeKind = "replace"
)

type ClipChange struct {
	Kind  ChangeKind
	DocID string
	Clip  *ClipRecord
}

type UserChange struct {
	Kind  ChangeKind
	DocID string
	User  *UserRecord
}

// ClipStore is the metadata persistence port.
type ClipStore interface {
	SaveClip(ctx context.Context, rec *ClipRecord) (string, error)
	GetClip(ctx context.Context, id string) (*ClipRecord, error)
	DeleteClip(ctx context.Context, id string) error
	ListClips(ctx context.Context) ([]ClipRecord, error)
	ListUsers(ctx context.Context) ([]UserRecord, error)
	WatchClips(ctx context.Context, onChange func(ClipChange)) error
	WatchUsers(ctx context.Context, onChange func(UserChange)) error
}
