package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
)

const (
	// Search results are capped by the platform.
	maxSearchLimit = 10

	// Ban duration bounds, in days. 0 is a permanent ban.
	maxBanDays = 999

	maxUserAgentLength = 256
)

// Validator checks request parameters before any network call is made.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePostSort checks a listing sort order and, for the two sorts that
// are period-scoped, the period. A period accompanying any other sort is
// accepted regardless of value.
func (v *Validator) ValidatePostSort(sort, period string) error {
	switch sort {
	case "hot", "new", "rising":
		return nil
	case "top", "controversial":
		switch period {
		case "hour", "day", "week", "month", "year", "all":
			return nil
		}
		return &pkgerrs.ArgumentError{
			Name:    "period",
			Message: fmt.Sprintf("sorting by %s requires a valid period, not %q", sort, period),
		}
	}
	return &pkgerrs.ArgumentError{
		Name:    "sort",
		Message: fmt.Sprintf("invalid sort type: %q", sort),
	}
}

// ValidateInboxFilter checks an inbox listing filter.
func (v *Validator) ValidateInboxFilter(filter string) error {
	switch filter {
	case "inbox", "unread", "sent", "messages":
		return nil
	}
	return &pkgerrs.ArgumentError{
		Name:    "filter",
		Message: fmt.Sprintf(`filter must be "inbox", "unread", "sent", or "messages", not %q`, filter),
	}
}

// ValidateSearchLimit checks the subreddit-search result cap.
func (v *Validator) ValidateSearchLimit(limit int) error {
	if limit < 0 || limit > maxSearchLimit {
		return &pkgerrs.ArgumentError{
			Name:    "limit",
			Message: fmt.Sprintf("the limit of results to return must be between 0 and %d", maxSearchLimit),
		}
	}
	return nil
}

// ValidateListingLimit checks the page size requested from a listing
// endpoint.
func (v *Validator) ValidateListingLimit(limit int) error {
	if limit < 0 {
		return &pkgerrs.ArgumentError{
			Name:    "limit",
			Message: "the limit of results to return must not be negative",
		}
	}
	return nil
}

// ValidateBanLength checks a ban duration in days.
func (v *Validator) ValidateBanLength(days int) error {
	if days < 0 || days > maxBanDays {
		return &pkgerrs.BanDurationError{Days: days}
	}
	return nil
}

// ValidateVoteDirection checks a vote direction: 1 upvote, -1 downvote,
// 0 clear.
func (v *Validator) ValidateVoteDirection(direction int) error {
	if direction < -1 || direction > 1 {
		return &pkgerrs.ArgumentError{
			Name:    "direction",
			Message: fmt.Sprintf("vote direction must be -1, 0, or 1, not %d", direction),
		}
	}
	return nil
}

// ValidatePostKind checks the submission type for a new post.
func (v *Validator) ValidatePostKind(kind string) error {
	switch kind {
	case "text", "link":
		return nil
	}
	return &pkgerrs.ArgumentError{
		Name:    "type",
		Message: fmt.Sprintf(`post type must be "text" or "link", not %q`, kind),
	}
}

// ValidateUserAgent checks the User-Agent string. It must be non-empty and
// free of header-injection characters.
func (v *Validator) ValidateUserAgent(ua string) error {
	if len(ua) == 0 {
		return &pkgerrs.ArgumentError{Name: "userAgent", Message: "user agent string must not be empty"}
	}
	if strings.ContainsAny(ua, "\r\n") {
		return &pkgerrs.ArgumentError{Name: "userAgent", Message: "user agent cannot contain newline characters"}
	}
	if len(ua) > maxUserAgentLength {
		return &pkgerrs.ArgumentError{
			Name:    "userAgent",
			Message: fmt.Sprintf("user agent too long (max %d characters)", maxUserAgentLength),
		}
	}
	return nil
}
