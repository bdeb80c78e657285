package reddit

import (
	"net/url"

	"github.com/tidwall/gjson"
)

// Direction selects which way a listing call pages.
type Direction int

const (
	// Forward follows the cursor's After token.
	Forward Direction = iota
	// Backward follows the cursor's Before token.
	Backward
)

// ListingPage is the opaque cursor threaded through listing calls. Both
// tokens empty means "first page". After each call the tokens are refreshed
// from the response, so the same cursor can be passed again for the next
// page.
//
// Tokens are only meaningful relative to the exact listing call (sort,
// scope) that produced them. Reusing a cursor across different listing
// parameters is not validated here; the server decides what it means.
type ListingPage struct {
	After  string
	Before string
}

// applyCursor forwards the cursor token matching dir as a query parameter.
func applyCursor(q url.Values, page *ListingPage, dir Direction) {
	if page == nil {
		return
	}
	switch dir {
	case Backward:
		if page.Before != "" {
			q.Set("before", page.Before)
		}
	default:
		if page.After != "" {
			q.Set("after", page.After)
		}
	}
}

// refreshCursor updates both tokens from a listing's data object.
func refreshCursor(page *ListingPage, data gjson.Result) {
	if page == nil {
		return
	}
	page.After = data.Get("after").String()
	page.Before = data.Get("before").String()
}
