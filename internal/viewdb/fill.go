package viewdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

const encryptedType = "xxx-encrypted"

// FillMessages indexes msgs in a single transaction and returns how many were
// new. Messages are immutable, so a key that is already present is skipped.
func (d *DB) FillMessages(ctx context.Context, msgs []ssb.Message) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			d.log.Warn("skipping invalid message", zap.Error(err))
			continue
		}
		ok, err := fillMessage(ctx, tx, msg)
		if err != nil {
			return 0, fmt.Errorf("fill message %s: %w", msg.Key, err)
		}
		if ok {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	d.log.Debug("filled messages", zap.Int("received", len(msgs)), zap.Int("inserted", inserted))
	return inserted, nil
}

func fillMessage(ctx context.Context, tx *sql.Tx, msg ssb.Message) (bool, error) {
	author, err := authorID(ctx, tx, msg.Author())
	if err != nil {
		return false, err
	}
	content, err := json.Marshal(msg.Value.Content)
	if err != nil {
		return false, fmt.Errorf("encode content: %w", err)
	}
	typ := msg.Value.Content.TypeString
	if typ == "" {
		typ = string(msg.Type())
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO messages (key, author_id, sequence, type, claimed_at, received_at, is_decrypted, content)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO NOTHING
`, string(msg.Key), author, msg.Value.Sequence, typ, msg.Value.Timestamp, msg.Timestamp,
		boolInt(typ == encryptedType || msg.Metadata.IsPrivate), string(content))
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("message id: %w", err)
	}

	c := msg.Value.Content
	switch c.Type {
	case ssb.ContentPost:
		err = fillPost(ctx, tx, msgID, c.Post)
	case ssb.ContentContact:
		err = fillContact(ctx, tx, msgID, author, msg.Value.Timestamp, c.Contact)
	case ssb.ContentVote:
		err = fillVote(ctx, tx, msgID, c.Vote)
	case ssb.ContentAbout:
		err = fillAbout(ctx, tx, msgID, msg.Author(), msg.Value.Timestamp, c.About)
	}
	return err == nil, err
}

func fillPost(ctx context.Context, tx *sql.Tx, msgID int64, p *ssb.Post) error {
	root := strings.TrimSpace(string(p.Root))
	if _, err := tx.ExecContext(ctx, `INSERT INTO posts (msg_ref, is_root, text) VALUES (?, ?, ?)`,
		msgID, boolInt(root == ""), p.Text); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	for _, tag := range hashtags(p.Mentions) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO hashtags (msg_ref, name) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			msgID, tag); err != nil {
			return fmt.Errorf("insert hashtag: %w", err)
		}
	}
	if root == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO tangles (msg_ref, root_key) VALUES (?, ?)`, msgID, root); err != nil {
		return fmt.Errorf("insert tangle: %w", err)
	}
	return nil
}

// hashtags returns the normalized tags of mentions linking to a '#' channel.
func hashtags(mentions []ssb.Mention) []string {
	var tags []string
	for _, m := range mentions {
		if !strings.HasPrefix(m.Link, "#") {
			continue
		}
		if tag := feed.NormalizeHashtag(m.Link); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// fillContact keeps only the latest contact message per (author, contact).
func fillContact(ctx context.Context, tx *sql.Tx, msgID, author int64, claimed float64, c *ssb.Contact) error {
	if !strings.HasPrefix(string(c.Contact), "@") {
		return nil
	}
	contact, err := authorID(ctx, tx, c.Contact)
	if err != nil {
		return err
	}
	state := 0
	switch {
	case c.Blocking:
		state = -1
	case c.Following:
		state = 1
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO contacts (author_id, contact_id, msg_ref, state, claimed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(author_id, contact_id) DO UPDATE SET
  msg_ref=excluded.msg_ref,
  state=excluded.state,
  claimed_at=excluded.claimed_at
WHERE excluded.claimed_at >= contacts.claimed_at
`, author, contact, msgID, state, claimed); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func fillVote(ctx context.Context, tx *sql.Tx, msgID int64, v *ssb.Vote) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO votes (msg_ref, link_key, value) VALUES (?, ?, ?)`,
		msgID, string(v.Link), v.Value); err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// fillAbout merges self-published abouts. Abouts about other identities are
// kept in messages but do not change how that identity is displayed.
func fillAbout(ctx context.Context, tx *sql.Tx, msgID int64, author ssb.Identity, claimed float64, a *ssb.About) error {
	if a.About != author {
		return nil
	}
	aboutID, err := authorID(ctx, tx, a.About)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO abouts (about_id, msg_ref, name, description, image, claimed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(about_id) DO UPDATE SET
  msg_ref=excluded.msg_ref,
  name=COALESCE(excluded.name, abouts.name),
  description=COALESCE(excluded.description, abouts.description),
  image=COALESCE(excluded.image, abouts.image),
  claimed_at=excluded.claimed_at
WHERE excluded.claimed_at >= abouts.claimed_at
`, aboutID, msgID, nullString(a.Name), nullString(a.Description), nullString(a.Image), claimed); err != nil {
		return fmt.Errorf("upsert about: %w", err)
	}
	return nil
}

// AddPub records a pub identity. Pubs are hidden from follow events.
func (d *DB) AddPub(ctx context.Context, id ssb.Identity) error {
	if !strings.HasPrefix(string(id), "@") {
		return fmt.Errorf("invalid pub identity %q", id)
	}
	if _, err := d.db.ExecContext(ctx, `INSERT INTO pubs (key) VALUES (?) ON CONFLICT(key) DO NOTHING`, string(id)); err != nil {
		return fmt.Errorf("insert pub: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
