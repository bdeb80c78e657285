package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
	"github.com/redclient/go-reddit/pkg/types"
)

// Subreddit is a community.
type Subreddit struct {
	session *Session
	raw     gjson.Result

	DisplayName string
	Fullname    string
	Created     time.Time

	Subscribers     int
	ActiveUserCount int
	Language        string

	Quarantined       bool
	PostingRestricted bool

	// ViewerBanned reports whether the session user is banned from the
	// community. Always false on an anonymous session: the field is only
	// present when the viewer is known.
	ViewerBanned bool
}

// Rule is one entry of a community's rule list.
type Rule struct {
	Kind            string
	Description     string
	ShortName       string
	ViolationReason string
	Created         time.Time
	Priority        int
}

// SubmitOptions controls post submission. The zero value is not useful;
// start from DefaultSubmitOptions.
type SubmitOptions struct {
	// Kind is "text" or "link".
	Kind string

	NSFW         bool
	Spoiler      bool
	Resubmit     bool
	Ad           bool
	InboxReplies bool

	CollectionID string
	FlairID      string

	// EventStart and EventEnd must both be set or both be zero, and a
	// non-zero window requires EventTimezone.
	EventStart    time.Time
	EventEnd      time.Time
	EventTimezone string

	// ImagePath names a local media file to upload before submission.
	// When set, the uploaded URL replaces the contents and the post is
	// submitted as a link.
	ImagePath string
}

// DefaultSubmitOptions returns the defaults: a text post with inbox
// replies enabled.
func DefaultSubmitOptions() *SubmitOptions {
	return &SubmitOptions{Kind: "text", InboxReplies: true}
}

// Subreddit fetches a community by display name.
func (s *Session) Subreddit(ctx context.Context, name string) (*Subreddit, error) {
	if name == "" {
		return nil, &pkgerrs.ArgumentError{Name: "name", Message: "subreddit name must not be empty"}
	}

	res, err := s.get(ctx, "/r/"+name+"/about", nil)
	if err != nil {
		return nil, rewrapFetch(err,
			"could not find a subreddit with name r/"+name,
			"you are not allowed to access r/"+name)
	}
	data := res.Get("data")
	// When no subreddit matches exactly the server answers with a search
	// listing instead of a subreddit object.
	if data.Get("children").Exists() {
		return nil, &pkgerrs.NotFoundError{Resource: "no subreddit named " + strconv.Quote(name) + " exists"}
	}
	return newSubredditFromData(s, data)
}

func newSubredditFromData(s *Session, data gjson.Result) (*Subreddit, error) {
	var sd types.SubredditData
	if err := json.Unmarshal([]byte(data.Raw), &sd); err != nil {
		return nil, &pkgerrs.StatusError{Message: "failed to parse subreddit data", Err: err}
	}

	banned := false
	if sd.UserIsBanned != nil {
		banned = *sd.UserIsBanned
	}
	return &Subreddit{
		session:           s,
		raw:               data,
		DisplayName:       sd.DisplayName,
		Fullname:          types.PrefixSubreddit + "_" + sd.ID,
		Created:           time.Unix(int64(sd.CreatedUTC), 0).UTC(),
		Subscribers:       sd.Subscribers,
		ActiveUserCount:   sd.ActiveUserCount,
		Language:          sd.Language,
		Quarantined:       sd.Quarantine,
		PostingRestricted: sd.RestrictPosting,
		ViewerBanned:      banned,
	}, nil
}

// Attr looks up an arbitrary field of the raw subreddit payload. Missing
// paths resolve to a null result.
func (sr *Subreddit) Attr(path string) gjson.Result {
	return sr.raw.Get(path)
}

// Posts fetches one page of the community's post listing. Sort must be
// one of hot, new, rising, top or controversial; period applies only to
// top and controversial. A non-nil page forwards its cursor token per
// dir and is refreshed from the response, so the same page can be passed
// again for the next call. The result holds at most limit posts; fewer
// means the listing is exhausted.
func (sr *Subreddit) Posts(ctx context.Context, sort, period string, limit int, page *ListingPage, dir Direction) ([]*Post, error) {
	if err := sr.session.check.ValidatePostSort(sort, period); err != nil {
		return nil, err
	}
	if err := sr.session.check.ValidateListingLimit(limit); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if sort == "top" || sort == "controversial" {
		q.Set("t", period)
	}
	applyCursor(q, page, dir)

	res, err := sr.session.get(ctx, "/r/"+sr.DisplayName+"/"+sort, q)
	if err != nil {
		return nil, rewrapFetch(err,
			"could not find a subreddit with name r/"+sr.DisplayName,
			"you don't have permission to look at r/"+sr.DisplayName+" posts")
	}
	data := res.Get("data")
	children := data.Get("children")
	if !children.Exists() {
		return nil, &pkgerrs.StatusError{Message: "malformed response from server when fetching r/" + sr.DisplayName + " posts"}
	}
	refreshCursor(page, data)

	posts := make([]*Post, 0, limit)
	for _, child := range children.Array() {
		if len(posts) == limit {
			break
		}
		if child.Get("kind").String() != types.PrefixPost {
			continue
		}
		post, err := newPostFromData(sr.session, child.Get("data"))
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// SubmitPost submits a new post to the community and fetches it back.
// A nil opts submits a plain text post.
func (sr *Subreddit) SubmitPost(ctx context.Context, title, contents string, opts *SubmitOptions) (*Post, error) {
	if opts == nil {
		opts = DefaultSubmitOptions()
	}
	if err := sr.session.check.ValidatePostKind(opts.Kind); err != nil {
		return nil, err
	}
	if opts.EventStart.IsZero() != opts.EventEnd.IsZero() {
		return nil, &pkgerrs.PostingError{Message: "either both event_start and event_end must be specified, or neither, but not one"}
	}
	if !opts.EventStart.IsZero() && opts.EventTimezone == "" {
		return nil, &pkgerrs.PostingError{Message: "a time zone was not specified"}
	}
	if err := sr.session.requireAuth("make a post in r/" + sr.DisplayName); err != nil {
		return nil, err
	}

	kind := opts.Kind
	if opts.ImagePath != "" {
		mediaURL, err := sr.session.uploadMediaFile(ctx, opts.ImagePath)
		if err != nil {
			return nil, err
		}
		contents = mediaURL
		kind = "link"
	}

	apiKind := "self"
	if kind == "link" {
		apiKind = "link"
	}

	form := url.Values{}
	form.Set("sr", sr.DisplayName)
	form.Set("title", title)
	form.Set("text", contents)
	form.Set("url", contents)
	form.Set("kind", apiKind)
	form.Set("ad", strconv.FormatBool(opts.Ad))
	form.Set("collection_id", opts.CollectionID)
	form.Set("flair_id", opts.FlairID)
	form.Set("nsfw", strconv.FormatBool(opts.NSFW))
	form.Set("resubmit", strconv.FormatBool(opts.Resubmit))
	form.Set("sendreplies", strconv.FormatBool(opts.InboxReplies))
	form.Set("spoiler", strconv.FormatBool(opts.Spoiler))
	if !opts.EventStart.IsZero() {
		form.Set("event_start", opts.EventStart.Format("2006-01-02T15:04:05"))
		form.Set("event_end", opts.EventEnd.Format("2006-01-02T15:04:05"))
		form.Set("event_tz", opts.EventTimezone)
	}

	res, err := sr.session.postForm(ctx, "/api/submit", form, nil)
	if err != nil {
		return nil, err
	}
	if res.Get("status").Exists() {
		return nil, &pkgerrs.StatusError{Message: "the server gave a malformed response while attempting to make a post"}
	}
	if !res.Get("success").Bool() {
		// The server answers in a jquery call-list shape; the error and
		// its description sit at fixed offsets.
		return nil, &pkgerrs.PostingError{
			Message:     res.Get("jquery.10.3.0").String(),
			Description: res.Get("jquery.14.3.0").String(),
		}
	}

	postURL := res.Get("jquery.10.3.0").String()
	id, err := postIDFromURL(postURL)
	if err != nil {
		return nil, err
	}
	return sr.session.Post(ctx, id)
}

// postIDFromURL extracts the post id from a canonical post URL of the
// form https://<host>/r/<subreddit>/comments/<id>/<slug>.
func postIDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", &pkgerrs.StatusError{Message: "the server reported a malformed post URL", Err: err}
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, segment := range segments {
		if segment == "comments" && i+1 < len(segments) {
			return segments[i+1], nil
		}
	}
	return "", &pkgerrs.StatusError{Message: "the server reported a post URL without a post id: " + raw}
}

// Subscribe subscribes the session user to the community. When
// skipInitialDefaults is set a first-ever subscription does not also add
// the platform's default communities.
func (sr *Subreddit) Subscribe(ctx context.Context, skipInitialDefaults bool) error {
	if err := sr.session.requireAuth("subscribe to r/" + sr.DisplayName); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "sub")
	// Required by the API for unknown reason.
	form.Set("action_source", "a")
	form.Set("skip_initial_defaults", strconv.FormatBool(skipInitialDefaults))
	form.Set("sr_name", sr.DisplayName)
	_, err := sr.session.postForm(ctx, "/api/subscribe", form, nil)
	return err
}

// Unsubscribe removes the session user's subscription.
func (sr *Subreddit) Unsubscribe(ctx context.Context) error {
	if err := sr.session.requireAuth("unsubscribe from r/" + sr.DisplayName); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("action", "unsub")
	form.Set("action_source", "a")
	form.Set("sr_name", sr.DisplayName)
	_, err := sr.session.postForm(ctx, "/api/subscribe", form, nil)
	return err
}

// Ban bans a user from the community for days days, 0 meaning permanent.
// Days outside [0, 999] fail before any network call.
func (sr *Subreddit) Ban(ctx context.Context, username, message string, days int, reason, modnote string) error {
	if err := sr.session.check.ValidateBanLength(days); err != nil {
		return err
	}
	if err := sr.session.requireAuth("ban a user from r/" + sr.DisplayName); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("ban_reason", reason)
	form.Set("ban_message", message)
	form.Set("duration", strconv.Itoa(days))
	form.Set("name", username)
	form.Set("note", modnote)
	form.Set("type", "banned")

	_, err := sr.session.postForm(ctx, "/r/"+sr.DisplayName+"/api/friend", form, nil)
	if err != nil {
		var unauthorised *pkgerrs.UnauthorisedError
		if errors.As(err, &unauthorised) {
			return &pkgerrs.UnauthorisedError{
				Resource: "you are not allowed to ban " + username + " from r/" + sr.DisplayName,
				Err:      err,
			}
		}
		return err
	}
	return nil
}

// Unban lifts a user's ban. The target's fullname is resolved through a
// user lookup first.
func (sr *Subreddit) Unban(ctx context.Context, username string) error {
	if err := sr.session.requireAuth("unban a user from r/" + sr.DisplayName); err != nil {
		return err
	}

	target, err := sr.session.Redditor(ctx, username)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("api_type", "json")
	form.Set("id", target.Fullname)
	form.Set("type", "banned")

	_, err = sr.session.postForm(ctx, "/r/"+sr.DisplayName+"/api/unfriend", form, nil)
	if err != nil {
		var unauthorised *pkgerrs.UnauthorisedError
		if errors.As(err, &unauthorised) {
			return &pkgerrs.UnauthorisedError{
				Resource: "you are not allowed to unban " + username + " from r/" + sr.DisplayName,
				Err:      err,
			}
		}
		return err
	}
	return nil
}

// Rules fetches the community's rule list. The listing is one-shot, the
// server never pages it.
func (sr *Subreddit) Rules(ctx context.Context) ([]Rule, error) {
	res, err := sr.session.get(ctx, "/r/"+sr.DisplayName+"/about/rules", nil)
	if err != nil {
		return nil, rewrapFetch(err,
			"could not find a subreddit with name r/"+sr.DisplayName,
			"you are not allowed to access the rules of r/"+sr.DisplayName)
	}

	entries := res.Get("rules").Array()
	rules := make([]Rule, 0, len(entries))
	for _, entry := range entries {
		var rd types.RuleData
		if err := json.Unmarshal([]byte(entry.Raw), &rd); err != nil {
			return nil, &pkgerrs.StatusError{Message: "failed to parse subreddit rules", Err: err}
		}
		rules = append(rules, Rule{
			Kind:            rd.Kind,
			Description:     rd.Description,
			ShortName:       rd.ShortName,
			ViolationReason: rd.ViolationReason,
			Created:         time.Unix(int64(rd.CreatedUTC), 0).UTC(),
			Priority:        rd.Priority,
		})
	}
	return rules, nil
}
