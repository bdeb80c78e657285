package reddit

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/tidwall/gjson"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
)

// nestedCommentJSON builds a comment whose replies hold the given children.
func nestedCommentJSON(id, body string, depth int, children ...string) string {
	replies := `""`
	if len(children) > 0 {
		joined := ""
		for i, child := range children {
			if i > 0 {
				joined += ","
			}
			joined += `{"kind": "t1", "data": ` + child + `}`
		}
		replies = `{"kind": "Listing", "data": {"children": [` + joined + `]}}`
	}
	return fmt.Sprintf(`{
		"id": %q, "name": "t1_%s", "author": "bob", "subreddit": "golang",
		"score": 1, "created": 1600000000, "created_utc": 1600000000,
		"edited": false, "body": %q, "depth": %d, "replies": %s
	}`, id, id, body, depth, replies)
}

func TestReplies_NoNetworkCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	})
	session := newAnonSession(t, server)

	data := nestedCommentJSON("c1", "root", 0,
		nestedCommentJSON("c2", "child one", 1),
		nestedCommentJSON("c3", "child two", 1,
			nestedCommentJSON("c4", "grandchild", 2)))

	comment, err := newCommentFromData(session, gjson.Parse(data))
	if err != nil {
		t.Fatalf("newCommentFromData: %v", err)
	}

	replies, err := comment.Replies()
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("len(replies) = %d, want 2", len(replies))
	}
	if replies[0].Content != "child one" || replies[1].Content != "child two" {
		t.Errorf("reply bodies = %q, %q", replies[0].Content, replies[1].Content)
	}
	if replies[0].Depth != 1 {
		t.Errorf("reply Depth = %d, want 1", replies[0].Depth)
	}

	// Direct children only; the grandchild is one more Replies away.
	deeper, err := replies[1].Replies()
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(deeper) != 1 || deeper[0].Content != "grandchild" {
		t.Errorf("grandchildren = %+v", deeper)
	}

	if got := calls.Load(); got != 0 {
		t.Errorf("server saw %d calls, want 0", got)
	}
}

func TestReplies_EmptyStringMeansLeaf(t *testing.T) {
	t.Parallel()

	comment, err := newCommentFromData(nil, gjson.Parse(nestedCommentJSON("c1", "leaf", 0)))
	if err != nil {
		t.Fatalf("newCommentFromData: %v", err)
	}
	replies, err := comment.Replies()
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(replies) != 0 {
		t.Errorf("len(replies) = %d, want 0", len(replies))
	}
}

func TestWalk_VisitsDeepTreesDepthFirst(t *testing.T) {
	t.Parallel()

	// A strictly linear chain much deeper than anything recursion-shy
	// code would want on the stack.
	const depth = 500
	data := nestedCommentJSON("c-bottom", fmt.Sprintf("level %d", depth), depth)
	for level := depth - 1; level >= 0; level-- {
		data = nestedCommentJSON(fmt.Sprintf("c-%d", level), fmt.Sprintf("level %d", level), level, data)
	}

	comment, err := newCommentFromData(nil, gjson.Parse(data))
	if err != nil {
		t.Fatalf("newCommentFromData: %v", err)
	}

	var visited []int
	if err := comment.Walk(func(c *Comment) {
		visited = append(visited, c.Depth)
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(visited) != depth+1 {
		t.Fatalf("visited %d comments, want %d", len(visited), depth+1)
	}
	for i, d := range visited {
		if d != i {
			t.Fatalf("visit %d has depth %d, want %d", i, d, i)
		}
	}
}

func TestWalk_DepthFirstOrderAcrossSiblings(t *testing.T) {
	t.Parallel()

	data := nestedCommentJSON("c1", "root", 0,
		nestedCommentJSON("c2", "a", 1,
			nestedCommentJSON("c3", "a.1", 2)),
		nestedCommentJSON("c4", "b", 1))

	comment, err := newCommentFromData(nil, gjson.Parse(data))
	if err != nil {
		t.Fatalf("newCommentFromData: %v", err)
	}

	var order []string
	if err := comment.Walk(func(c *Comment) {
		order = append(order, c.Content)
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	want := []string{"root", "a", "a.1", "b"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("visit order = %v, want %v", order, want)
	}
}

func TestReplies_ParseFailureSurfaces(t *testing.T) {
	t.Parallel()

	broken := `{
		"id": "c9", "name": "t1_c9", "author": "mallory", "subreddit": "golang",
		"score": "NOT_A_NUMBER", "created": 1600000100, "created_utc": 1600000100,
		"edited": false, "body": "broken", "depth": 1, "replies": ""
	}`
	data := nestedCommentJSON("c1", "root", 0,
		nestedCommentJSON("c2", "fine", 1),
		broken)

	comment, err := newCommentFromData(nil, gjson.Parse(data))
	if err != nil {
		t.Fatalf("newCommentFromData: %v", err)
	}

	replies, err := comment.Replies()
	if err == nil {
		t.Fatal("Replies returned nil error for a malformed reply")
	}
	if replies != nil {
		t.Errorf("Replies returned %d replies alongside the error", len(replies))
	}
	var se *pkgerrs.StatusError
	if !errors.As(err, &se) {
		t.Errorf("error = %v (%T), want *StatusError", err, err)
	}

	var visited []string
	if err := comment.Walk(func(c *Comment) {
		visited = append(visited, c.Content)
	}); err == nil {
		t.Error("Walk returned nil error for a malformed reply")
	}
}
