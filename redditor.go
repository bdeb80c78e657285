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

// Redditor is a user account.
type Redditor struct {
	session *Session
	raw     gjson.Result

	Username string
	Fullname string
	Created  time.Time

	TotalKarma   int
	AwardeeKarma int
	AwarderKarma int
	CommentKarma int
	LinkKarma    int
}

// Redditor fetches a user account by username.
func (s *Session) Redditor(ctx context.Context, username string) (*Redditor, error) {
	if username == "" {
		return nil, &pkgerrs.ArgumentError{Name: "username", Message: "username must not be empty"}
	}

	res, err := s.get(ctx, "/user/"+username+"/about", nil)
	if err != nil {
		return nil, rewrapFetch(err,
			"no such user with username "+username,
			"you are not authorised to view the user with username "+username)
	}
	return newRedditorFromData(s, res.Get("data"))
}

func newRedditorFromData(s *Session, data gjson.Result) (*Redditor, error) {
	var ad types.AccountData
	if err := json.Unmarshal([]byte(data.Raw), &ad); err != nil {
		return nil, &pkgerrs.StatusError{Message: "failed to parse account data", Err: err}
	}

	return &Redditor{
		session:      s,
		raw:          data,
		Username:     ad.Username,
		Fullname:     types.PrefixAccount + "_" + ad.ID,
		Created:      time.Unix(int64(ad.CreatedUTC), 0).UTC(),
		TotalKarma:   ad.TotalKarma,
		AwardeeKarma: ad.AwardeeKarma,
		AwarderKarma: ad.AwarderKarma,
		CommentKarma: ad.CommentKarma,
		LinkKarma:    ad.LinkKarma,
	}, nil
}

// Attr looks up an arbitrary field of the raw account payload. Missing
// paths resolve to a null result.
func (r *Redditor) Attr(path string) gjson.Result {
	return r.raw.Get(path)
}

// Follow subscribes the session user to this account's profile feed.
func (r *Redditor) Follow(ctx context.Context) error {
	return r.setFollowed(ctx, true)
}

// Unfollow removes the profile feed subscription.
func (r *Redditor) Unfollow(ctx context.Context) error {
	return r.setFollowed(ctx, false)
}

func (r *Redditor) setFollowed(ctx context.Context, follow bool) error {
	action := "unfollow user " + r.Username
	if follow {
		action = "follow user " + r.Username
	}
	if err := r.session.requireAuth(action); err != nil {
		return err
	}

	sub := "unsub"
	if follow {
		sub = "sub"
	}
	form := url.Values{}
	form.Set("action", sub)
	form.Set("sr_name", "u_"+r.Username)

	_, err := r.session.postForm(ctx, "/api/subscribe", form, nil)
	return err
}
