package viewdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

const maxRepliers = 3

var ErrNotFound = errors.New("message not found")

// The random order hashes msg_id XOR seed multiplicatively modulo the largest
// prime below 2^32. Seeds are reduced below 2^31 so the product fits in int64.
const (
	randomModulus = 4294967291
	seedRange     = 1 << 31
)

// visible filters the messages aliased m. It takes the current time in
// milliseconds.
const visible = `m.hidden = 0 AND m.is_decrypted = 0 AND m.claimed_at <= ?`

// visibleReply is visible for replies aliased rm.
const visibleReply = `rm.hidden = 0 AND rm.is_decrypted = 0 AND rm.claimed_at <= ?`

// feedColumns takes the current time in milliseconds for the reply count.
const feedColumns = `
SELECT m.key, a.author, m.sequence, m.claimed_at, m.received_at, m.content,
  ab.name, ab.description, ab.image,
  (SELECT COUNT(*) FROM tangles t
   JOIN messages rm ON rm.msg_id = t.msg_ref
   WHERE t.root_key = m.key AND ` + visibleReply + `) AS reply_count`

const feedFrom = `
FROM messages m
JOIN authors a ON a.id = m.author_id
LEFT JOIN posts p ON p.msg_ref = m.msg_id
LEFT JOIN contacts c ON c.msg_ref = m.msg_id
LEFT JOIN abouts ab ON ab.about_id = m.author_id`

const (
	rootPost    = `(m.type = 'post' AND p.is_root = 1)`
	followsOf   = `(SELECT contact_id FROM contacts WHERE author_id = ? AND state = 1)`
	blockedBy   = `(SELECT contact_id FROM contacts WHERE author_id = ? AND state = -1)`
	pubAuthors  = `(SELECT id FROM authors WHERE author IN (SELECT key FROM pubs))`
	followEvent = `(m.type = 'contact' AND c.state = 1
  AND c.contact_id IN (SELECT about_id FROM abouts)
  AND c.contact_id NOT IN ` + pubAuthors + `)`
	newestFirst = `m.claimed_at DESC, m.msg_id DESC`
)

// query is a strategy's filter and order with positional arguments.
type query struct {
	selectArgs []any
	where      []string
	whereArgs  []any
	order      string
	orderArgs  []any
}

func (q *query) and(clause string, args ...any) {
	q.where = append(q.where, clause)
	q.whereArgs = append(q.whereArgs, args...)
}

func (d *DB) strategyQuery(s feed.Strategy) (query, error) {
	if err := s.Validate(); err != nil {
		return query{}, err
	}
	now := d.nowMillis()

	q := query{selectArgs: []any{now}}
	q.and(visible, now)
	q.order = newestFirst

	switch s.Kind {
	case feed.KindRecentPosts:
		q.and(rootPost)
		q.and(`(m.author_id = ? OR m.author_id IN `+followsOf+`)`, d.meID, d.meID)
		q.and(`m.author_id NOT IN `+blockedBy, d.meID)
	case feed.KindRecentPostsAndFollows, feed.KindRecentlyActivePostsAndFollows:
		q.and(`(` + rootPost + ` OR ` + followEvent + `)`)
		q.and(`(m.author_id = ? OR m.author_id IN `+followsOf+`)`, d.meID, d.meID)
		q.and(`m.author_id NOT IN ` + pubAuthors)
		if s.Kind == feed.KindRecentlyActivePostsAndFollows {
			q.order = `MAX(m.claimed_at, COALESCE((
  SELECT MAX(rm.claimed_at) FROM tangles t
  JOIN messages rm ON rm.msg_id = t.msg_ref
  WHERE t.root_key = m.key AND ` + visibleReply + `), 0)) DESC, m.msg_id DESC`
			q.orderArgs = []any{now}
		}
	case feed.KindRandom:
		q.and(rootPost)
		q.and(`m.author_id <> ?`, d.meID)
		q.and(`m.author_id NOT IN `+followsOf, d.meID)
		q.and(`m.author_id NOT IN `+blockedBy, d.meID)
		q.and(`m.author_id NOT IN ` + pubAuthors)
		seed := normalizeSeed(s.Seed)
		q.order = `((((m.msg_id | ?) - (m.msg_id & ?)) * 2654435761) % ?), m.msg_id`
		q.orderArgs = []any{seed, seed, int64(randomModulus)}
	case feed.KindOneHop:
		q.and(rootPost)
		q.and(`m.author_id IN `+followsOf, d.meID)
		q.and(`m.author_id NOT IN ` + pubAuthors)
	case feed.KindNoHop:
		q.and(`m.author_id = ?`, d.meID)
		q.and(`(m.type = 'post' OR (m.type = 'contact' AND c.state = 1))`)
	case feed.KindProfile:
		q.and(rootPost)
		q.and(`a.author = ?`, string(s.Identity))
	case feed.KindReplies:
		q.and(`m.type = 'post'`)
		if s.Root != "" {
			q.and(`m.msg_id IN (SELECT msg_ref FROM tangles WHERE root_key = ?)`, string(s.Root))
			q.order = `m.claimed_at ASC, m.msg_id ASC`
		} else {
			q.and(`m.author_id <> ?`, d.meID)
			q.and(`m.msg_id IN (SELECT t.msg_ref FROM tangles t
  JOIN messages rt ON rt.key = t.root_key
  WHERE rt.author_id = ?)`, d.meID)
		}
		q.and(`m.author_id NOT IN `+blockedBy, d.meID)
	case feed.KindHashtag:
		q.and(`m.type = 'post'`)
		q.and(`m.msg_id IN (SELECT msg_ref FROM hashtags WHERE name = ?)`, feed.NormalizeHashtag(s.Hashtag))
		q.and(`m.author_id NOT IN `+blockedBy, d.meID)
	default:
		return query{}, fmt.Errorf("%w: %q", feed.ErrUnknownKind, s.Kind)
	}
	return q, nil
}

func normalizeSeed(seed int64) int64 {
	seed %= seedRange
	if seed < 0 {
		seed += seedRange
	}
	return seed
}

// Feed returns one page of messages for the strategy. It implements
// feed.Store.
func (d *DB) Feed(ctx context.Context, s feed.Strategy, limit, offset int) ([]ssb.Message, error) {
	if limit < 1 {
		return nil, fmt.Errorf("invalid page limit %d", limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("invalid page offset %d", offset)
	}
	q, err := d.strategyQuery(s)
	if err != nil {
		return nil, err
	}

	stmt := feedColumns + feedFrom +
		"\nWHERE " + strings.Join(q.where, "\n  AND ") +
		"\nORDER BY " + q.order +
		"\nLIMIT ? OFFSET ?"
	args := append(append(append(append([]any{}, q.selectArgs...), q.whereArgs...), q.orderArgs...), limit, offset)

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s feed: %w", s.Kind, err)
	}
	defer rows.Close()

	msgs := make([]ssb.Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s feed: %w", s.Kind, err)
	}

	if err := d.fillRepliers(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Count returns the number of messages the strategy would page through.
func (d *DB) Count(ctx context.Context, s feed.Strategy) (int, error) {
	q, err := d.strategyQuery(s)
	if err != nil {
		return 0, err
	}
	stmt := `SELECT COUNT(*)` + feedFrom + "\nWHERE " + strings.Join(q.where, "\n  AND ")
	var n int
	if err := d.db.QueryRowContext(ctx, stmt, q.whereArgs...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s feed: %w", s.Kind, err)
	}
	return n, nil
}

// Message looks up a single message by key with the same metadata a feed
// page carries.
func (d *DB) Message(ctx context.Context, key ssb.MessageKey) (ssb.Message, error) {
	rows, err := d.db.QueryContext(ctx, feedColumns+feedFrom+"\nWHERE m.key = ?", d.nowMillis(), string(key))
	if err != nil {
		return ssb.Message{}, fmt.Errorf("query message %s: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return ssb.Message{}, fmt.Errorf("query message %s: %w", key, err)
		}
		return ssb.Message{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	msg, err := scanMessage(rows)
	if err != nil {
		return ssb.Message{}, err
	}
	rows.Close()

	msgs := []ssb.Message{msg}
	if err := d.fillRepliers(ctx, msgs); err != nil {
		return ssb.Message{}, err
	}
	return msgs[0], nil
}

func scanMessage(rows *sql.Rows) (ssb.Message, error) {
	var (
		msg                    ssb.Message
		key, author, content   string
		name, description, img sql.NullString
		replyCount             int
	)
	if err := rows.Scan(
		&key,
		&author,
		&msg.Value.Sequence,
		&msg.Value.Timestamp,
		&msg.Timestamp,
		&content,
		&name,
		&description,
		&img,
		&replyCount,
	); err != nil {
		return ssb.Message{}, fmt.Errorf("scan message: %w", err)
	}
	msg.Key = ssb.MessageKey(key)
	msg.Value.Author = ssb.Identity(author)
	if err := json.Unmarshal([]byte(content), &msg.Value.Content); err != nil {
		return ssb.Message{}, fmt.Errorf("decode message %s content: %w", key, err)
	}
	if name.Valid || description.Valid || img.Valid {
		msg.Metadata.AuthorAbout = &ssb.About{
			About:       msg.Value.Author,
			Name:        name.String,
			Description: description.String,
			Image:       img.String,
		}
	}
	msg.Metadata.ReplyCount = replyCount
	return msg, nil
}

// fillRepliers attaches up to maxRepliers distinct reply authors to each
// message, earliest reply first.
func (d *DB) fillRepliers(ctx context.Context, msgs []ssb.Message) error {
	var keys []any
	index := make(map[ssb.MessageKey]int)
	for i, msg := range msgs {
		if msg.Metadata.ReplyCount > 0 {
			keys = append(keys, string(msg.Key))
			index[msg.Key] = i
		}
	}
	if len(keys) == 0 {
		return nil
	}

	rows, err := d.db.QueryContext(ctx, `
SELECT t.root_key, ra.author, MIN(rm.claimed_at) AS first_reply
FROM tangles t
JOIN messages rm ON rm.msg_id = t.msg_ref
JOIN authors ra ON ra.id = rm.author_id
WHERE t.root_key IN (?`+strings.Repeat(", ?", len(keys)-1)+`)
  AND `+visibleReply+`
GROUP BY t.root_key, ra.author
ORDER BY t.root_key, first_reply
`, append(keys, d.nowMillis())...)
	if err != nil {
		return fmt.Errorf("query repliers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			root, author string
			first        float64
		)
		if err := rows.Scan(&root, &author, &first); err != nil {
			return fmt.Errorf("scan replier: %w", err)
		}
		i := index[ssb.MessageKey(root)]
		if len(msgs[i].Metadata.Repliers) < maxRepliers {
			msgs[i].Metadata.Repliers = append(msgs[i].Metadata.Repliers, ssb.Identity(author))
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate repliers: %w", err)
	}
	return nil
}

var _ feed.Store = (*DB)(nil)
