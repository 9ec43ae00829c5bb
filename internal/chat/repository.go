package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/store"
)

const (
	selectMessageSQL = `SELECT id, room_id, sender, message, created_at FROM ws_chat_messages WHERE id = :id`
	selectRecentSQL  = `SELECT id, room_id, sender, message, created_at
FROM ws_chat_messages
WHERE room_id = :roomId
ORDER BY id DESC
LIMIT :limit`
)

// Message is one persisted chat line.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	RoomID    string    `db:"room_id" json:"roomId"`
	Sender    string    `db:"sender" json:"sender"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Repository is the append-only message log.
type Repository struct {
	db      store.Queryer
	dialect store.Dialect
}

// NewRepository returns a Repository that runs its statements on db.
func NewRepository(db store.Queryer, dialect store.Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// Append stores a message and returns it with its generated id and timestamp.
func (r *Repository) Append(ctx context.Context, roomID, sender, message string) (Message, error) {
	args := store.Args{"roomId": roomID, "sender": sender, "message": message}

	var id int64
	if r.dialect.InsertReturnsID {
		if err := store.Get(ctx, r.db, &id, r.dialect.InsertChatMessageSQL, args); err != nil {
			return Message{}, errors.Wrap(err, "inserting message")
		}
	} else {
		var err error
		if id, err = store.Insert(ctx, r.db, r.dialect.InsertChatMessageSQL, args); err != nil {
			return Message{}, errors.Wrap(err, "inserting message")
		}
	}
	if id == 0 {
		return Message{}, errors.New("failed to insert message")
	}

	var m Message
	if err := store.Get(ctx, r.db, &m, selectMessageSQL, store.Args{"id": id}); err != nil {
		return Message{}, errors.Wrapf(err, "reading message %d", id)
	}
	return m, nil
}

// Recent returns up to limit messages of roomID, newest first.
func (r *Repository) Recent(ctx context.Context, roomID string, limit int) ([]Message, error) {
	messages := []Message{}
	if err := store.Select(ctx, r.db, &messages, selectRecentSQL, store.Args{"roomId": roomID, "limit": limit}); err != nil {
		return nil, errors.Wrapf(err, "reading room %q", roomID)
	}
	return messages, nil
}
