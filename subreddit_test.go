package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
)

const subredditJSON = `{
	"kind": "t5",
	"data": {
		"id": "2rc7j",
		"name": "t5_2rc7j",
		"display_name": "golang",
		"created": 1233135142,
		"created_utc": 1233135142,
		"subscribers": 200000,
		"active_user_count": 1500,
		"lang": "en",
		"quarantine": false,
		"restrict_posting": true
	}
}`

// jqueryResponse mimics the submit endpoint's call-list shape: the strings
// of interest sit at jquery[10][3][0] and jquery[14][3][0].
func jqueryResponse(success bool, slot10, slot14 string) string {
	filler := `[0, 1, "attr", "find"]`
	elements := make([]string, 15)
	for i := range elements {
		elements[i] = filler
	}
	elements[10] = `[10, 11, "call", ["` + slot10 + `"]]`
	elements[14] = `[14, 15, "call", ["` + slot14 + `"]]`

	successText := "false"
	if success {
		successText = "true"
	}
	return `{"success": ` + successText + `, "jquery": [` + strings.Join(elements, ",") + `]}`
}

func fetchTestSubreddit(t *testing.T, session *Session) *Subreddit {
	t.Helper()
	sub, err := session.Subreddit(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Subreddit: %v", err)
	}
	return sub
}

func TestSessionSubreddit_Fields(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/golang/about" {
			t.Errorf("path = %q, want /r/golang/about", r.URL.Path)
		}
		w.Write([]byte(subredditJSON))
	})
	session := newAnonSession(t, server)

	sub := fetchTestSubreddit(t, session)
	if sub.DisplayName != "golang" || sub.Fullname != "t5_2rc7j" {
		t.Errorf("name/fullname = %q/%q", sub.DisplayName, sub.Fullname)
	}
	if sub.Subscribers != 200000 || sub.ActiveUserCount != 1500 {
		t.Errorf("subscribers/active = %d/%d", sub.Subscribers, sub.ActiveUserCount)
	}
	if sub.Language != "en" || sub.Quarantined || !sub.PostingRestricted {
		t.Errorf("lang/quarantine/restricted = %q/%v/%v", sub.Language, sub.Quarantined, sub.PostingRestricted)
	}
	// The banned field is absent for anonymous viewers and defaults to
	// false rather than being an error.
	if sub.ViewerBanned {
		t.Error("ViewerBanned = true with the field absent")
	}
	if want := time.Unix(1233135142, 0).UTC(); !sub.Created.Equal(want) {
		t.Errorf("Created = %v, want %v", sub.Created, want)
	}
}

func TestSessionSubreddit_BannedFieldPromoted(t *testing.T) {
	t.Parallel()

	data := strings.Replace(subredditJSON, `"quarantine": false,`, `"quarantine": false, "user_is_banned": true,`, 1)
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(data))
	})
	session := newAuthedSession(t, server)

	sub := fetchTestSubreddit(t, session)
	if !sub.ViewerBanned {
		t.Error("ViewerBanned = false, want true")
	}
}

func TestSessionSubreddit_SearchListingMeansNotFound(t *testing.T) {
	t.Parallel()

	// An inexact name makes the server answer with a search listing in
	// place of the subreddit object.
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"kind": "Listing", "data": {"children": [
			{"kind": "t5", "data": {"display_name": "golang"}}
		]}}`))
	})
	session := newAnonSession(t, server)

	_, err := session.Subreddit(context.Background(), "golan")
	if !errors.Is(err, pkgerrs.KindNotFound) {
		t.Errorf("error = %v, want KindNotFound", err)
	}
}

func TestPosts_SortValidationFailsFast(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/golang/about" {
			w.Write([]byte(subredditJSON))
			return
		}
		calls.Add(1)
		w.Write([]byte(`{}`))
	})
	session := newAnonSession(t, server)
	sub := fetchTestSubreddit(t, session)

	tests := []struct {
		sort   string
		period string
	}{
		{sort: "best"},
		{sort: ""},
		{sort: "top"},
		{sort: "top", period: "fortnight"},
		{sort: "controversial", period: "decade"},
	}
	for _, tt := range tests {
		_, err := sub.Posts(context.Background(), tt.sort, tt.period, 5, nil, Forward)
		if !errors.Is(err, pkgerrs.KindArgument) {
			t.Errorf("Posts(%q, %q) error = %v, want KindArgument", tt.sort, tt.period, err)
		}
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("server saw %d listing calls, want 0", got)
	}
}

func TestPosts_NegativeLimitFailsFast(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/golang/about" {
			w.Write([]byte(subredditJSON))
			return
		}
		calls.Add(1)
		w.Write([]byte(`{}`))
	})
	session := newAnonSession(t, server)
	sub := fetchTestSubreddit(t, session)

	for _, limit := range []int{-1, -100} {
		_, err := sub.Posts(context.Background(), "hot", "", limit, nil, Forward)
		if !errors.Is(err, pkgerrs.KindArgument) {
			t.Errorf("Posts(limit=%d) error = %v, want KindArgument", limit, err)
		}
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("server saw %d listing calls, want 0", got)
	}
}

func TestPosts_CursorThreading(t *testing.T) {
	t.Parallel()

	listing := `{
		"kind": "Listing",
		"data": {
			"after": "t3_page2",
			"before": "t3_page0",
			"children": [
				{"kind": "t3", "data": ` + postDataJSON + `},
				{"kind": "t5", "data": {"display_name": "golang"}},
				{"kind": "t3", "data": ` + strings.Replace(postDataJSON, "abc123", "def456", -1) + `}
			]
		}
	}`

	var queries []url.Values
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/about":
			w.Write([]byte(subredditJSON))
		case "/r/golang/top":
			queries = append(queries, r.URL.Query())
			w.Write([]byte(listing))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	session := newAnonSession(t, server)
	sub := fetchTestSubreddit(t, session)

	page := &ListingPage{}
	posts, err := sub.Posts(context.Background(), "top", "week", 5, page, Forward)
	if err != nil {
		t.Fatalf("first Posts: %v", err)
	}

	// Non-post children are skipped, not errors.
	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(posts))
	}
	if posts[0].ID != "abc123" || posts[1].ID != "def456" {
		t.Errorf("post ids = %q, %q", posts[0].ID, posts[1].ID)
	}
	if page.After != "t3_page2" || page.Before != "t3_page0" {
		t.Errorf("cursor = %+v, want after=t3_page2 before=t3_page0", page)
	}

	if _, err := sub.Posts(context.Background(), "top", "week", 5, page, Forward); err != nil {
		t.Fatalf("second Posts: %v", err)
	}
	if _, err := sub.Posts(context.Background(), "top", "week", 5, page, Backward); err != nil {
		t.Fatalf("third Posts: %v", err)
	}

	if len(queries) != 3 {
		t.Fatalf("server saw %d listing calls, want 3", len(queries))
	}
	if queries[0].Get("after") != "" || queries[0].Get("before") != "" {
		t.Errorf("first call forwarded a cursor: %v", queries[0])
	}
	if queries[0].Get("t") != "week" {
		t.Errorf("first call period = %q, want week", queries[0].Get("t"))
	}
	if queries[1].Get("after") != "t3_page2" {
		t.Errorf("second call after = %q, want t3_page2", queries[1].Get("after"))
	}
	if queries[2].Get("before") != "t3_page0" {
		t.Errorf("third call before = %q, want t3_page0", queries[2].Get("before"))
	}
}

func TestPosts_LimitCapsResults(t *testing.T) {
	t.Parallel()

	listing := `{"kind": "Listing", "data": {"after": "", "before": "", "children": [
		{"kind": "t3", "data": ` + postDataJSON + `},
		{"kind": "t3", "data": ` + strings.Replace(postDataJSON, "abc123", "def456", -1) + `},
		{"kind": "t3", "data": ` + strings.Replace(postDataJSON, "abc123", "ghi789", -1) + `}
	]}}`

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/golang/about" {
			w.Write([]byte(subredditJSON))
			return
		}
		w.Write([]byte(listing))
	})
	session := newAnonSession(t, server)
	sub := fetchTestSubreddit(t, session)

	posts, err := sub.Posts(context.Background(), "hot", "", 2, nil, Forward)
	if err != nil {
		t.Fatalf("Posts: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("len(posts) = %d, want 2", len(posts))
	}
}

func TestSubmitPost_EventWindowValidation(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/golang/about" {
			w.Write([]byte(subredditJSON))
			return
		}
		calls.Add(1)
		w.Write([]byte(`{}`))
	})
	session := newAuthedSession(t, server)
	sub := fetchTestSubreddit(t, session)

	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		opts *SubmitOptions
	}{
		{
			name: "start without end",
			opts: &SubmitOptions{Kind: "text", EventStart: start, EventTimezone: "UTC"},
		},
		{
			name: "end without start",
			opts: &SubmitOptions{Kind: "text", EventEnd: start.Add(time.Hour), EventTimezone: "UTC"},
		},
		{
			name: "window without timezone",
			opts: &SubmitOptions{Kind: "text", EventStart: start, EventEnd: start.Add(time.Hour)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sub.SubmitPost(context.Background(), "title", "contents", tt.opts)
			var postErr *pkgerrs.PostingError
			if !errors.As(err, &postErr) {
				t.Errorf("error = %T (%v), want *PostingError", err, err)
			}
		})
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("server saw %d calls, want 0", got)
	}
}

func TestSubmitPost_JqueryErrorShape(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/about":
			w.Write([]byte(subredditJSON))
		case "/api/submit":
			w.Write([]byte(jqueryResponse(false, "BAD_URL", "that url is invalid")))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	session := newAuthedSession(t, server)
	sub := fetchTestSubreddit(t, session)

	_, err := sub.SubmitPost(context.Background(), "title", "not-a-url", &SubmitOptions{Kind: "link"})
	var postErr *pkgerrs.PostingError
	if !errors.As(err, &postErr) {
		t.Fatalf("error = %T, want *PostingError", err)
	}
	if postErr.Message != "BAD_URL" || postErr.Description != "that url is invalid" {
		t.Errorf("PostingError = %+v", postErr)
	}
}

func TestSubmitPost_SuccessFetchesNewPost(t *testing.T) {
	t.Parallel()

	var submitForm url.Values
	var fetchedPath string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/about":
			w.Write([]byte(subredditJSON))
		case "/api/submit":
			r.ParseForm()
			submitForm = r.PostForm
			w.Write([]byte(jqueryResponse(true, "https://www.reddit.com/r/golang/comments/newid1/my_post/", "")))
		case "/newid1":
			fetchedPath = r.URL.Path
			w.Write([]byte(postFetchJSON()))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	session := newAuthedSession(t, server)
	sub := fetchTestSubreddit(t, session)

	post, err := sub.SubmitPost(context.Background(), "My post", "hello", nil)
	if err != nil {
		t.Fatalf("SubmitPost: %v", err)
	}
	if post == nil {
		t.Fatal("SubmitPost returned a nil post")
	}

	if submitForm.Get("sr") != "golang" || submitForm.Get("title") != "My post" {
		t.Errorf("form sr/title = %q/%q", submitForm.Get("sr"), submitForm.Get("title"))
	}
	if submitForm.Get("kind") != "self" {
		t.Errorf("form kind = %q, want self", submitForm.Get("kind"))
	}
	if submitForm.Get("sendreplies") != "true" {
		t.Errorf("form sendreplies = %q, want true", submitForm.Get("sendreplies"))
	}
	// The post id comes out of the canonical URL's path, not a fixed
	// character offset.
	if fetchedPath != "/newid1" {
		t.Errorf("fetched path = %q, want /newid1", fetchedPath)
	}
}

func TestSubmitPost_ImageUpload(t *testing.T) {
	t.Parallel()

	imagePath := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(imagePath, []byte("not really a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	var submitForm url.Values
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/about":
			w.Write([]byte(subredditJSON))
		case "/api/submit":
			r.ParseForm()
			submitForm = r.PostForm
			w.Write([]byte(jqueryResponse(true, "https://www.reddit.com/r/golang/comments/newid1/shot/", "")))
		case "/newid1":
			w.Write([]byte(postFetchJSON()))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	session, err := NewSession(&Config{
		Username:     "testuser",
		Password:     "hunter2",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		UserAgent:    "test-agent",
		BaseURL:      server.URL,
		PublicURL:    server.URL,
		TokenURL:     server.URL + "/api/v1/access_token",
		HTTPClient:   server.Client(),
		RateLimit:    fastRate,
		MediaUploader: func(ctx context.Context, path string) (string, error) {
			if path != imagePath {
				t.Errorf("uploader got path %q, want %q", path, imagePath)
			}
			return "https://i.example.com/shot.png", nil
		},
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	sub := fetchTestSubreddit(t, session)

	opts := DefaultSubmitOptions()
	opts.ImagePath = imagePath
	if _, err := sub.SubmitPost(context.Background(), "A screenshot", "", opts); err != nil {
		t.Fatalf("SubmitPost: %v", err)
	}

	if submitForm.Get("kind") != "link" {
		t.Errorf("form kind = %q, want link", submitForm.Get("kind"))
	}
	if submitForm.Get("url") != "https://i.example.com/shot.png" {
		t.Errorf("form url = %q, want the uploaded URL", submitForm.Get("url"))
	}
}

func TestSubmitPost_MissingImageFile(t *testing.T) {
	t.Parallel()

	var submits atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/golang/about" {
			w.Write([]byte(subredditJSON))
			return
		}
		submits.Add(1)
		w.Write([]byte(`{}`))
	})
	session := newAuthedSession(t, server)
	sub := fetchTestSubreddit(t, session)

	opts := DefaultSubmitOptions()
	opts.ImagePath = filepath.Join(t.TempDir(), "does-not-exist.png")

	_, err := sub.SubmitPost(context.Background(), "title", "", opts)
	var fileErr *pkgerrs.FileOperationError
	if !errors.As(err, &fileErr) {
		t.Fatalf("error = %T, want *FileOperationError", err)
	}
	if got := submits.Load(); got != 0 {
		t.Errorf("server saw %d submit calls, want 0", got)
	}
}

func TestBan_DurationBoundsFailFast(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/r/golang/about" {
			w.Write([]byte(subredditJSON))
			return
		}
		calls.Add(1)
		w.Write([]byte(`{}`))
	})
	session := newAuthedSession(t, server)
	sub := fetchTestSubreddit(t, session)

	for _, days := range []int{-1, 1000} {
		err := sub.Ban(context.Background(), "eve", "bye", days, "spam", "")
		var banErr *pkgerrs.BanDurationError
		if !errors.As(err, &banErr) {
			t.Errorf("Ban(%d days) error = %T, want *BanDurationError", days, err)
		}
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("server saw %d calls, want 0", got)
	}
}

func TestBan_FormAndUnauthorisedContext(t *testing.T) {
	t.Parallel()

	var banForm url.Values
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/about":
			w.Write([]byte(subredditJSON))
		case "/r/golang/api/friend":
			r.ParseForm()
			banForm = r.PostForm
			code := int(status.Load())
			w.WriteHeader(code)
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	session := newAuthedSession(t, server)
	sub := fetchTestSubreddit(t, session)

	if err := sub.Ban(context.Background(), "eve", "you are banned", 30, "spam", "repeat offender"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if banForm.Get("name") != "eve" || banForm.Get("duration") != "30" || banForm.Get("type") != "banned" {
		t.Errorf("ban form = %v", banForm)
	}

	status.Store(http.StatusForbidden)
	err := sub.Ban(context.Background(), "eve", "you are banned", 30, "spam", "")
	if !errors.Is(err, pkgerrs.KindUnauthorised) {
		t.Fatalf("Ban error = %v, want KindUnauthorised", err)
	}
	if !strings.Contains(err.Error(), "eve") || !strings.Contains(err.Error(), "golang") {
		t.Errorf("error %q does not name the user and community", err)
	}
}

func TestUnban_ResolvesFullname(t *testing.T) {
	t.Parallel()

	var unfriendForm url.Values
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/about":
			w.Write([]byte(subredditJSON))
		case "/user/eve/about":
			w.Write([]byte(strings.Replace(accountJSON, "testuser", "eve", 1)))
		case "/r/golang/api/unfriend":
			r.ParseForm()
			unfriendForm = r.PostForm
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	session := newAuthedSession(t, server)
	sub := fetchTestSubreddit(t, session)

	if err := sub.Unban(context.Background(), "eve"); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if unfriendForm.Get("id") != "t2_abc12" {
		t.Errorf("unfriend id = %q, want t2_abc12", unfriendForm.Get("id"))
	}
	if unfriendForm.Get("type") != "banned" {
		t.Errorf("unfriend type = %q, want banned", unfriendForm.Get("type"))
	}
}

func TestRules(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/about":
			w.Write([]byte(subredditJSON))
		case "/r/golang/about/rules":
			w.Write([]byte(`{"rules": [
				{"kind": "link", "description": "Stay on topic.", "short_name": "On topic",
				 "violation_reason": "Off topic", "created_utc": 1500000000, "priority": 0},
				{"kind": "all", "description": "Be kind.", "short_name": "Civility",
				 "violation_reason": "Uncivil", "created_utc": 1500000100, "priority": 1}
			]}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	session := newAnonSession(t, server)
	sub := fetchTestSubreddit(t, session)

	rules, err := sub.Rules(context.Background())
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
	if rules[0].ShortName != "On topic" || rules[0].Priority != 0 {
		t.Errorf("rules[0] = %+v", rules[0])
	}
	if rules[1].Kind != "all" || rules[1].ViolationReason != "Uncivil" {
		t.Errorf("rules[1] = %+v", rules[1])
	}
}

func TestSubscribe_Form(t *testing.T) {
	t.Parallel()

	var forms []url.Values
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/about":
			w.Write([]byte(subredditJSON))
		case "/api/subscribe":
			r.ParseForm()
			forms = append(forms, r.PostForm)
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	session := newAuthedSession(t, server)
	sub := fetchTestSubreddit(t, session)

	if err := sub.Subscribe(context.Background(), true); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := sub.Unsubscribe(context.Background()); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	if len(forms) != 2 {
		t.Fatalf("server saw %d subscribe calls, want 2", len(forms))
	}
	if forms[0].Get("action") != "sub" || forms[0].Get("sr_name") != "golang" || forms[0].Get("skip_initial_defaults") != "true" {
		t.Errorf("subscribe form = %v", forms[0])
	}
	if forms[1].Get("action") != "unsub" || forms[1].Get("sr_name") != "golang" {
		t.Errorf("unsubscribe form = %v", forms[1])
	}
}

func TestModerationAndSubscription_RequireLogin(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(subredditJSON))
	})
	session := newAnonSession(t, server)
	sub := fetchTestSubreddit(t, session)

	ctx := context.Background()
	ops := map[string]func() error{
		"SubmitPost":  func() error { _, err := sub.SubmitPost(ctx, "t", "c", nil); return err },
		"Ban":         func() error { return sub.Ban(ctx, "eve", "", 1, "", "") },
		"Unban":       func() error { return sub.Unban(ctx, "eve") },
		"Subscribe":   func() error { return sub.Subscribe(ctx, false) },
		"Unsubscribe": func() error { return sub.Unsubscribe(ctx) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, pkgerrs.KindNotLoggedIn) {
			t.Errorf("%s error = %v, want KindNotLoggedIn", name, err)
		}
	}
}
