package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"petfeed/pkg/config"
	"petfeed/pkg/feed"
	"petfeed/pkg/feedclient"
	"petfeed/pkg/logger"
)

type demoUser struct {
	email    string
	password string
	name     string
	petName  string
}

var demoUsers = []demoUser{
	{"alice@test.com", "password123", "Alice", "Mochi"},
	{"bob@test.com", "password123", "Bob", "Biscuit"},
	{"charlie@test.com", "password123", "Charlie", "Pepper"},
	{"diana@test.com", "password123", "Diana", "Nori"},
	{"eve@test.com", "password123", "Eve", "Waffles"},
}

func main() {
	var postsPerUser int
	flag.IntVar(&postsPerUser, "posts", 3, "posts to create per demo user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	ctx := context.Background()

	if err := seed(ctx, cfg, postsPerUser, log); err != nil {
		log.Error("Failed to seed: %v", err)
		panic(err)
	}

	log.Info("Demo data seeded successfully!")
}

// seed goes through the public APIs so images land in S3 and like counters
// stay paired with like rows.
func seed(ctx context.Context, cfg *config.Config, postsPerUser int, log *logger.Logger) error {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	clients := make([]*feedclient.Client, 0, len(demoUsers))
	var postIDs []string

	for _, u := range demoUsers {
		c := feedclient.New(cfg.AuthServiceURL, cfg.PostServiceURL)

		user, err := c.SignUp(ctx, u.email, u.password, u.name, u.petName)
		if errors.Is(err, feed.ErrBatchConflict) {
			log.Info("User %s already exists, signing in", u.email)
			user, err = c.SignIn(ctx, u.email, u.password)
		}
		if err != nil {
			log.Error("Failed to prepare user %s: %v", u.email, err)
			continue
		}
		clients = append(clients, c)
		log.Info("Using user %s (%s)", user.Name, user.ID)

		for i := 0; i < postsPerUser; i++ {
			post, err := createPetPost(ctx, c, httpClient, u, i, log)
			if err != nil {
				log.Error("Failed to create post %d for %s: %v", i+1, u.email, err)
				continue
			}
			postIDs = append(postIDs, post.ID)
			time.Sleep(200 * time.Millisecond)
		}
	}

	if len(clients) == 0 {
		return fmt.Errorf("no demo user could sign in")
	}

	// Every user likes every other post, so counts differ per post.
	liked := 0
	for i, c := range clients {
		for j, postID := range postIDs {
			if (i+j)%2 != 0 {
				continue
			}
			err := c.Like(ctx, postID, c.CurrentUserID())
			if err != nil && !errors.Is(err, feed.ErrBatchConflict) {
				log.Error("Failed to like post %s: %v", postID, err)
				continue
			}
			liked++
		}
	}
	log.Info("Created %d posts and %d likes", len(postIDs), liked)

	for _, c := range clients {
		if err := c.SignOut(ctx); err != nil {
			log.Warn("Sign out failed: %v", err)
		}
	}
	return nil
}

func createPetPost(ctx context.Context, c *feedclient.Client, httpClient *http.Client, u demoUser, index int, log *logger.Logger) (feed.Post, error) {
	imageURL := "https://cataas.com/cat"
	if index%2 == 0 {
		imageURL += "/says/" + url.PathEscape("Hello from "+u.petName)
	}

	log.Info("Fetching pet image from %s", imageURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return feed.Post{}, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return feed.Post{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feed.Post{}, fmt.Errorf("cataas API returned status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return feed.Post{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(imageData) == 0 {
		return feed.Post{}, fmt.Errorf("received empty image data")
	}

	caption := fmt.Sprintf("%s, day %d", u.petName, index+1)
	post, err := c.CreatePost(ctx, caption, fmt.Sprintf("seed_%d.jpg", index), bytes.NewReader(imageData))
	if err != nil {
		return feed.Post{}, err
	}

	log.Info("Created post %s: %q", post.ID, post.Caption)
	return post, nil
}
