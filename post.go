package reddit

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
	"github.com/redclient/go-reddit/pkg/types"
)

// Post is a submission made directly to a community.
type Post struct {
	Submission

	Title string
	// FlairText is the post's link flair, empty when none is set.
	FlairText string

	// comments caches the raw comment-listing children. A full fetch
	// captures them at construction time; otherwise the first Comments
	// call fills the cache, which is then kept for the Post's lifetime.
	comments    []gjson.Result
	hasComments bool
}

// Post fetches a post by id together with its comment tree. The two are
// delivered in one response, so the comments come for free and are cached
// on the Post.
func (s *Session) Post(ctx context.Context, id string) (*Post, error) {
	res, err := s.get(ctx, "/"+id, nil)
	if err != nil {
		return nil, rewrapFetch(err,
			"no such post with ID "+id,
			"you are not authorised to view the post with ID "+id)
	}

	data := res.Get("0.data.children.0.data")
	if !data.Exists() {
		return nil, &pkgerrs.StatusError{
			Message: "malformed response when fetching post with ID " + id,
		}
	}

	post, err := newPostFromData(s, data)
	if err != nil {
		return nil, err
	}

	if children := res.Get("1.data.children"); children.Exists() {
		post.comments = children.Array()
		post.hasComments = true
	}
	return post, nil
}

// newPostFromData builds a Post from an already-fetched JSON fragment,
// e.g. a listing child, avoiding a duplicate round trip. The comment cache
// starts empty on this path.
func newPostFromData(s *Session, data gjson.Result) (*Post, error) {
	var pd types.PostData
	if err := json.Unmarshal([]byte(data.Raw), &pd); err != nil {
		return nil, &pkgerrs.StatusError{Message: "failed to parse post data", Err: err}
	}

	post := &Post{
		Submission: newSubmission(s, data, &pd.SubmissionData),
		Title:      pd.Title,
	}
	if pd.LinkFlairText != nil {
		post.FlairText = *pd.LinkFlairText
	}

	// Text posts carry no hint; anything else is typed by its hint and
	// its content is the target URL.
	if pd.PostHint == "" {
		post.Kind = "text"
		post.Content = pd.SelfText
	} else {
		post.Kind = pd.PostHint
		post.Content = pd.URL
	}
	return post, nil
}

// Comments returns the post's top-level comments. The listing captured at
// construction time is reused when present; otherwise one fetch fills the
// cache and later calls reuse it without further network activity. sort
// and limit only affect that first fetch. Children are materialized into
// Comment values at call time.
func (p *Post) Comments(ctx context.Context, sort string, limit int) ([]*Comment, error) {
	if !p.hasComments {
		q := url.Values{}
		if sort != "" {
			q.Set("sort", sort)
		}
		if limit > 0 {
			q.Set("limit", strconv.Itoa(limit))
		}

		res, err := p.session.get(ctx, "/"+p.ID, q)
		if err != nil {
			return nil, rewrapFetch(err,
				"no such post with ID "+p.ID,
				"you are not authorised to view the post with ID "+p.ID)
		}

		children := res.Get("1.data.children")
		if !children.Exists() {
			return nil, &pkgerrs.StatusError{
				Message: "malformed response when fetching comments for post with ID " + p.ID,
			}
		}
		p.comments = children.Array()
		p.hasComments = true
	}

	comments := make([]*Comment, 0, len(p.comments))
	for _, child := range p.comments {
		if child.Get("kind").String() != types.PrefixComment {
			continue
		}
		comment, err := newCommentFromData(p.session, child.Get("data"))
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, nil
}
