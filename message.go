package reddit

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
	"github.com/redclient/go-reddit/pkg/types"
)

// Message kinds.
const (
	MessageKindPM           = "pm"
	MessageKindPostReply    = "post_reply"
	MessageKindCommentReply = "comment_reply"
	MessageKindModmail      = "modmail"
)

// Message is an inbox item: a private message, a post or comment reply,
// or moderator mail.
type Message struct {
	session *Session
	raw     gjson.Result

	ID       string
	Fullname string

	AuthorName string
	// SubredditName is empty for direct messages.
	SubredditName string

	Subject string
	Body    string
	Score   int
	Created time.Time
	Unread  bool

	// Kind is one of the MessageKind constants.
	Kind string

	// Children are the replies below this message. The platform keeps
	// message threads flat: children never carry children of their own.
	Children []*Message
}

// Inbox fetches one page of the session user's inbox. Filter must be one
// of inbox, unread, sent or messages. A non-nil page forwards its cursor
// token per dir and is refreshed from the response.
func (s *Session) Inbox(ctx context.Context, filter string, page *ListingPage, dir Direction) ([]*Message, error) {
	if err := s.check.ValidateInboxFilter(filter); err != nil {
		return nil, err
	}
	if err := s.requireAuth("read your inbox"); err != nil {
		return nil, err
	}

	q := url.Values{}
	applyCursor(q, page, dir)

	res, err := s.get(ctx, "/message/"+filter, q)
	if err != nil {
		return nil, err
	}
	data := res.Get("data")
	refreshCursor(page, data)

	children := data.Get("children").Array()
	messages := make([]*Message, 0, len(children))
	for _, child := range children {
		msg, err := newMessageFromData(s, child.Get("data"))
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func newMessageFromData(s *Session, data gjson.Result) (*Message, error) {
	var md types.MessageData
	if err := json.Unmarshal([]byte(data.Raw), &md); err != nil {
		return nil, &pkgerrs.StatusError{Message: "failed to parse message data", Err: err}
	}

	kind := md.Type
	// Comment-based inbox items carry a concrete type; plain messages come
	// back as "unknown" and split on the distinguished marker.
	if kind == "unknown" || kind == "" {
		if md.Distinguished != nil {
			kind = MessageKindModmail
		} else {
			kind = MessageKindPM
		}
	}

	subreddit := ""
	if md.Subreddit != nil {
		subreddit = *md.Subreddit
	}

	msg := &Message{
		session:       s,
		raw:           data,
		ID:            md.ID,
		Fullname:      md.Name,
		AuthorName:    md.Author,
		SubredditName: subreddit,
		Subject:       md.Subject,
		Body:          md.Body,
		Score:         md.Score,
		Created:       time.Unix(int64(md.CreatedUTC), 0).UTC(),
		Unread:        md.New,
		Kind:          kind,
	}

	// The API sends "" in place of the reply listing when there are none.
	replies := data.Get("replies")
	if replies.IsObject() {
		for _, child := range replies.Get("data.children").Array() {
			reply, err := newMessageFromData(s, child.Get("data"))
			if err != nil {
				return nil, err
			}
			msg.Children = append(msg.Children, reply)
		}
	}
	return msg, nil
}

// Attr looks up an arbitrary field of the raw message payload. Missing
// paths resolve to a null result.
func (m *Message) Attr(path string) gjson.Result {
	return m.raw.Get(path)
}

// Author fetches the sender's account.
func (m *Message) Author(ctx context.Context) (*Redditor, error) {
	return m.session.Redditor(ctx, m.AuthorName)
}

// Reply answers the message.
func (m *Message) Reply(ctx context.Context, contents string) error {
	if err := m.session.requireAuth("reply to a message"); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("thing_id", m.Fullname)
	form.Set("text", contents)
	_, err := m.session.postForm(ctx, "/api/comment", form, nil)
	return err
}

// MarkRead marks the message as read.
func (m *Message) MarkRead(ctx context.Context) error {
	return m.setRead(ctx, "/api/read_message")
}

// MarkUnread marks the message as unread.
func (m *Message) MarkUnread(ctx context.Context) error {
	return m.setRead(ctx, "/api/unread_message")
}

func (m *Message) setRead(ctx context.Context, path string) error {
	if err := m.session.requireAuth("change a message's read state"); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("id", m.Fullname)
	_, err := m.session.postForm(ctx, path, form, nil)
	return err
}
