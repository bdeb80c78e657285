package reddit

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
	"github.com/redclient/go-reddit/pkg/types"
)

// Comment is a reply to a post or to another comment.
//
// Comments cannot be fetched by bare id: the platform only resolves a
// comment through its parent post, so Comments only ever originate from a
// post's comment tree, a reply call, or an inbox listing.
type Comment struct {
	Submission

	// Depth is 0 for a direct reply to the post.
	Depth int
}

// newCommentFromData builds a Comment from a comment payload.
func newCommentFromData(s *Session, data gjson.Result) (*Comment, error) {
	var cd types.CommentData
	if err := json.Unmarshal([]byte(data.Raw), &cd); err != nil {
		return nil, &pkgerrs.StatusError{Message: "failed to parse comment data", Err: err}
	}

	comment := &Comment{
		Submission: newSubmission(s, data, &cd.SubmissionData),
		Depth:      cd.Depth,
	}
	comment.Kind = "comment"
	comment.Content = cd.Body
	return comment, nil
}

// Replies materializes this comment's direct children from the reply
// listing already embedded in the payload; no network call is made. The
// platform delivers the full tree below a root-level fetch eagerly, so
// deeper levels are reached by calling Replies on each child in turn (or
// with Walk).
func (c *Comment) Replies() ([]*Comment, error) {
	replies := c.raw.Get("replies")
	// The API sends "" in place of a listing when there are no replies.
	if !replies.IsObject() {
		return nil, nil
	}

	children := replies.Get("data.children").Array()
	out := make([]*Comment, 0, len(children))
	for _, child := range children {
		if child.Get("kind").String() != types.PrefixComment {
			continue
		}
		reply, err := newCommentFromData(c.session, child.Get("data"))
		if err != nil {
			return nil, err
		}
		out = append(out, reply)
	}
	return out, nil
}

// Walk visits the comment and its whole subtree depth-first. The traversal
// uses an explicit stack, so arbitrarily deep trees do not grow the call
// stack; comment reply depth is unbounded at the platform level. Traversal
// stops at the first reply that fails to parse.
func (c *Comment) Walk(visit func(*Comment)) error {
	stack := []*Comment{c}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visit(current)

		replies, err := current.Replies()
		if err != nil {
			return err
		}
		for i := len(replies) - 1; i >= 0; i-- {
			stack = append(stack, replies[i])
		}
	}
	return nil
}
