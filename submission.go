package reddit

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
	"github.com/redclient/go-reddit/pkg/types"
)

// Award is one award type granted to a submission.
type Award struct {
	ID      string
	Name    string
	Price   int
	Enabled bool
	// Count is the number of grants of this award.
	Count int
}

// Submission holds the data and behavior shared by posts and comments.
// It keeps the raw API payload so fields that were not promoted to typed
// attributes stay reachable through Attr.
type Submission struct {
	session *Session
	raw     gjson.Result

	// ID is the local id; Fullname prefixes it with the thing type,
	// "t1_" for comments and "t3_" for posts.
	ID       string
	Fullname string

	// AuthorName is the submitter's username; use Author to fetch the
	// Redditor.
	AuthorName string

	// SubredditName is the community the submission was made in; use
	// Subreddit to fetch it.
	SubredditName string

	Created time.Time
	// Edited is the zero time when the submission was never edited.
	Edited time.Time

	// Score as reported; the platform fuzzes displayed scores, so this
	// is not exact.
	Score int

	// Content is the body text for text submissions and the target URL
	// for link submissions.
	Content string

	// Kind is "comment" for comments; for posts it is "text", "link",
	// or a media hint.
	Kind string

	Awards []Award
}

// newSubmission fills the shared fields from a parsed payload.
func newSubmission(s *Session, data gjson.Result, sd *types.SubmissionData) Submission {
	sub := Submission{
		session:       s,
		raw:           data,
		ID:            sd.ID,
		Fullname:      sd.Name,
		AuthorName:    sd.Author,
		SubredditName: sd.Subreddit,
		Score:         sd.Score,
	}
	if sd.Created.Created > 0 {
		sub.Created = time.Unix(int64(sd.Created.Created), 0).UTC()
	}
	if sd.Edited.IsEdited && sd.Edited.Timestamp > 0 {
		sub.Edited = time.Unix(int64(sd.Edited.Timestamp), 0).UTC()
	}
	for _, a := range sd.Awards {
		sub.Awards = append(sub.Awards, Award{
			ID:      a.ID,
			Name:    a.Name,
			Price:   a.Price,
			Enabled: a.IsEnabled,
			Count:   a.Count,
		})
	}
	return sub
}

// Attr looks up a field of the raw payload by gjson path. Missing keys
// yield a null result whose Exists method reports false.
func (s *Submission) Attr(path string) gjson.Result {
	return s.raw.Get(path)
}

// Author fetches a Redditor for the submitter.
func (s *Submission) Author(ctx context.Context) (*Redditor, error) {
	return s.session.Redditor(ctx, s.AuthorName)
}

// Subreddit fetches the community the submission was made in.
func (s *Submission) Subreddit(ctx context.Context) (*Subreddit, error) {
	return s.session.Subreddit(ctx, s.SubredditName)
}

// Reply leaves a comment on the submission and returns it. distinguish
// marks the reply as made by a moderator in an official capacity.
func (s *Submission) Reply(ctx context.Context, contents string, distinguish bool) (*Comment, error) {
	if err := s.session.requireAuth("leave a reply"); err != nil {
		return nil, err
	}

	body := map[string]any{
		"return_rtjson": true,
		"text":          contents,
		"thing_id":      s.Fullname,
	}
	if distinguish {
		body["distinguish"] = true
	}

	res, err := s.session.postJSON(ctx, "/api/comment", body)
	if err != nil {
		return nil, err
	}
	return newCommentFromData(s.session, res)
}

// Remove removes the submission as a moderator. spam additionally trains
// the spam filter.
func (s *Submission) Remove(ctx context.Context, spam bool) error {
	if err := s.session.requireAuth("remove a submission"); err != nil {
		return err
	}
	_, err := s.session.postJSON(ctx, "/api/remove", map[string]any{
		"id":   s.Fullname,
		"spam": spam,
	})
	return err
}

// Delete deletes the submission as its author.
func (s *Submission) Delete(ctx context.Context) error {
	if err := s.session.requireAuth("delete a submission"); err != nil {
		return err
	}
	_, err := s.session.postJSON(ctx, "/api/del", map[string]any{
		"id": s.Fullname,
	})
	return err
}

// Edit replaces the submission's contents. On success only Content and
// Edited change; every other field keeps its fetched value. The platform
// reports two application-level rejections inside a 200 response: code 500
// for content that cannot be edited (e.g. a media post) and code 403 when
// the caller is not the author.
func (s *Submission) Edit(ctx context.Context, newContents string) error {
	if err := s.session.requireAuth("edit a submission"); err != nil {
		return err
	}

	res, err := s.session.postJSON(ctx, "/api/editusertext", map[string]any{
		"id":            s.Fullname,
		"return_rtjson": true,
		"text":          newContents,
	})
	if err != nil {
		return err
	}

	switch res.Get("code").Int() {
	case 500:
		return &pkgerrs.EditingError{Message: "you can't edit that submission"}
	case 403:
		return &pkgerrs.EditingError{Message: "you aren't allowed to edit that submission"}
	}

	s.Content = newContents
	if edited := res.Get("edited"); edited.Exists() && edited.Float() > 0 {
		s.Edited = time.Unix(int64(edited.Float()), 0).UTC()
	}
	return nil
}

// vote casts a vote: 1 upvote, -1 downvote, 0 clear. Any other direction
// is a programmer error and produces no network call.
func (s *Submission) vote(ctx context.Context, direction int) error {
	if err := s.session.check.ValidateVoteDirection(direction); err != nil {
		return err
	}
	if err := s.session.requireAuth("vote on a submission"); err != nil {
		return err
	}
	_, err := s.session.postJSON(ctx, "/api/vote", map[string]any{
		"id":  s.Fullname,
		"dir": direction,
	})
	return err
}

// Upvote casts an upvote. The platform requires a human to trigger votes;
// automated voting is considered vote-cheating.
func (s *Submission) Upvote(ctx context.Context) error { return s.vote(ctx, 1) }

// Downvote casts a downvote.
func (s *Submission) Downvote(ctx context.Context) error { return s.vote(ctx, -1) }

// ClearVote withdraws the current vote.
func (s *Submission) ClearVote(ctx context.Context) error { return s.vote(ctx, 0) }
