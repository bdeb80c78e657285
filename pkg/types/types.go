// Package types holds the wire-level payload structs shared between the
// transport layer and the entity model.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fullname type prefixes. A fullname is the platform's global identifier,
// a type prefix joined to the local id, e.g. "t3_abc123" for a post.
const (
	PrefixComment   = "t1"
	PrefixAccount   = "t2"
	PrefixPost      = "t3"
	PrefixMessage   = "t4"
	PrefixSubreddit = "t5"
)

// ThingData holds the identifier fields common to every addressable object.
type ThingData struct {
	ID   string `json:"id"`   // local id, no prefix
	Name string `json:"name"` // fullname, e.g. "t3_abc123"
}

// Created is an embeddable struct for things that carry a creation time.
type Created struct {
	Created    float64 `json:"created"`
	CreatedUTC float64 `json:"created_utc"`
}

// Edited represents the "edited" field, which the API serves as either a
// boolean or a float timestamp. IsEdited false means never edited; a
// timestamp of 0 with IsEdited true marks a legacy edit of unknown time.
type Edited struct {
	IsEdited  bool
	Timestamp float64
}

// UnmarshalJSON implements json.Unmarshaler to handle the mixed types.
func (e *Edited) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(string(data)) {
	case "false", "null":
		e.IsEdited = false
		e.Timestamp = 0
		return nil
	case "true":
		e.IsEdited = true
		e.Timestamp = 0
		return nil
	}

	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err == nil {
		e.IsEdited = true
		e.Timestamp = timestamp
		return nil
	}

	return fmt.Errorf("unrecognized type for 'edited' field: %s", data)
}

// AwardData describes one award type granted to a submission.
type AwardData struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int    `json:"price"`
	IsEnabled bool   `json:"is_enabled"`
	// Count is the number of grants of this award the submission received.
	Count int `json:"count"`
}

// SubmissionData carries the fields shared by posts and comments.
type SubmissionData struct {
	ThingData
	Created
	Author    string      `json:"author"`
	Subreddit string      `json:"subreddit"`
	Score     int         `json:"score"`
	Edited    Edited      `json:"edited"`
	Awards    []AwardData `json:"all_awardings"`
}

// PostData is the payload of a "t3" thing.
type PostData struct {
	SubmissionData
	Title         string  `json:"title"`
	LinkFlairText *string `json:"link_flair_text"`
	// PostHint is empty for text posts and a media hint otherwise.
	PostHint    string `json:"post_hint"`
	SelfText    string `json:"selftext"`
	URL         string `json:"url"`
	NumComments int    `json:"num_comments"`
}

// CommentData is the payload of a "t1" thing. Replies is kept raw: it is
// either an empty string or a nested Listing thing, and the entity layer
// materializes it lazily.
type CommentData struct {
	SubmissionData
	Body    string          `json:"body"`
	Depth   int             `json:"depth"`
	Replies json.RawMessage `json:"replies"`
}

// AccountData is the payload of a "t2" thing.
type AccountData struct {
	ThingData
	Created
	Username     string `json:"name"`
	TotalKarma   int    `json:"total_karma"`
	AwardeeKarma int    `json:"awardee_karma"`
	AwarderKarma int    `json:"awarder_karma"`
	CommentKarma int    `json:"comment_karma"`
	LinkKarma    int    `json:"link_karma"`
}

// SubredditData is the payload of a "t5" thing. UserIsBanned is a pointer
// because the field is absent for anonymous viewers and non-members.
type SubredditData struct {
	ThingData
	Created
	DisplayName     string `json:"display_name"`
	Subscribers     int    `json:"subscribers"`
	ActiveUserCount int    `json:"active_user_count"`
	Language        string `json:"lang"`
	Quarantine      bool   `json:"quarantine"`
	RestrictPosting bool   `json:"restrict_posting"`
	UserIsBanned    *bool  `json:"user_is_banned"`
}

// MessageData is the payload of a "t4" thing. Replies is raw for the same
// reason as CommentData.Replies; the platform caps message reply depth at
// one level.
type MessageData struct {
	ThingData
	Created
	Author        string          `json:"author"`
	Subject       string          `json:"subject"`
	Body          string          `json:"body"`
	Score         int             `json:"score"`
	New           bool            `json:"new"`
	Type          string          `json:"type"`
	Distinguished *string         `json:"distinguished"`
	Subreddit     *string         `json:"subreddit"`
	Replies       json.RawMessage `json:"replies"`
}

// RuleData describes one subreddit rule.
type RuleData struct {
	Kind            string  `json:"kind"`
	Description     string  `json:"description"`
	ShortName       string  `json:"short_name"`
	ViolationReason string  `json:"violation_reason"`
	CreatedUTC      float64 `json:"created_utc"`
	Priority        int     `json:"priority"`
}
