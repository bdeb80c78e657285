package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	reddit "github.com/redclient/go-reddit"
	pkgerrs "github.com/redclient/go-reddit/pkg/errors"
)

func main() {
	// Credentials come from the environment, optionally seeded from a
	// local .env file.
	_ = godotenv.Load()

	clientID := os.Getenv("REDDIT_CLIENT_ID")
	clientSecret := os.Getenv("REDDIT_CLIENT_SECRET")
	username := os.Getenv("REDDIT_USERNAME")
	password := os.Getenv("REDDIT_PASSWORD")

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug}))

	ctx := context.Background()
	userAgent := "go-reddit-example/1.0 by YourUsername"

	// Anonymous flow: read-only access needs nothing but a user agent.
	anon, err := reddit.NewAnonymousSession(userAgent)
	if err != nil {
		log.Fatalf("failed to create anonymous session: %v", err)
	}

	golang, err := anon.Subreddit(ctx, "golang")
	if err != nil {
		log.Fatalf("failed to fetch r/golang: %v", err)
	}
	fmt.Printf("r/golang has %d subscribers\n", golang.Subscribers)

	page := &reddit.ListingPage{}
	posts, err := golang.Posts(ctx, "hot", "", 5, page, reddit.Forward)
	if err != nil {
		log.Fatalf("failed to fetch posts: %v", err)
	}
	for _, post := range posts {
		fmt.Printf("  [%d] %s\n", post.Score, post.Title)
	}

	names, err := anon.SearchSubreddits(ctx, "golang", nil)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}
	fmt.Printf("subreddits matching \"golang\": %v\n", names)

	if clientID == "" || clientSecret == "" || username == "" || password == "" {
		fmt.Println("set REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USERNAME and REDDIT_PASSWORD for the authenticated flow")
		return
	}

	// Authenticated flow: the token is fetched on the first call and
	// renewed transparently afterwards.
	session, err := reddit.NewSession(&reddit.Config{
		Username:     username,
		Password:     password,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		UserAgent:    userAgent,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	me, err := session.Me(ctx)
	if err != nil {
		var loginErr *pkgerrs.LoginError
		if errors.As(err, &loginErr) {
			log.Fatalf("login rejected: %v", loginErr)
		}
		log.Fatalf("failed to fetch own account: %v", err)
	}
	fmt.Printf("authenticated as u/%s (karma %d)\n", me.Username, me.TotalKarma)

	inbox, err := session.Inbox(ctx, "unread", nil, reddit.Forward)
	if err != nil {
		log.Fatalf("failed to fetch inbox: %v", err)
	}
	fmt.Printf("%d unread messages\n", len(inbox))
	for _, msg := range inbox {
		fmt.Printf("  %s from u/%s: %s\n", msg.Kind, msg.AuthorName, msg.Subject)
	}
}
