package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"petfeed/pkg/config"
	"petfeed/pkg/feed"
	"petfeed/pkg/feedclient"
	"petfeed/pkg/logger"

	"github.com/urfave/cli/v2"
)

func newApp(cfg *config.Config, out io.Writer) *cli.App {
	return &cli.App{
		Name:      "feed",
		Usage:     "browse and manage the Petfeed photo feed",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "auth-url", Value: cfg.AuthServiceURL, Usage: "auth service base URL"},
			&cli.StringFlag{Name: "post-url", Value: cfg.PostServiceURL, Usage: "post service base URL"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"PETFEED_TOKEN"}, Usage: "bearer token from signin"},
			&cli.IntFlag{Name: "page-size", Value: cfg.FeedPageSize, Usage: "posts per page"},
			&cli.IntFlag{Name: "fanout", Value: cfg.FeedFanout, Usage: "concurrent liked-status checks"},
		},
		Commands: []*cli.Command{
			{
				Name:  "signup",
				Usage: "create an account and print its token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "pet-name"},
				},
				Action: signUp,
			},
			{
				Name:  "signin",
				Usage: "sign in and print a token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
				},
				Action: signIn,
			},
			{Name: "signout", Usage: "revoke the current token", Action: signOut},
			{Name: "whoami", Usage: "show the signed-in user", Action: whoAmI},
			{
				Name:      "post",
				Usage:     "share a pet photo",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caption", Required: true},
				},
				Action: createPost,
			},
			{
				Name:  "feed",
				Usage: "show the newest posts",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "pages", Value: 1, Usage: "number of pages to load"},
				},
				Action: showFeed,
			},
			{Name: "like", Usage: "like or unlike a post", ArgsUsage: "POST_ID", Action: toggleLike},
			{
				Name:      "edit",
				Usage:     "change the caption of your post",
				ArgsUsage: "POST_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caption", Required: true},
				},
				Action: editCaption,
			},
			{Name: "delete", Usage: "delete your post and its likes", ArgsUsage: "POST_ID", Action: deletePost},
		},
	}
}

func client(c *cli.Context) *feedclient.Client {
	return feedclient.New(c.String("auth-url"), c.String("post-url"))
}

// session resumes the token given by --token or PETFEED_TOKEN.
func session(c *cli.Context) (*feedclient.Client, error) {
	token := c.String("token")
	if token == "" {
		return nil, fmt.Errorf("%w: pass --token or set PETFEED_TOKEN", feed.ErrNotAuthenticated)
	}
	fc := client(c)
	if _, err := fc.Resume(c.Context, token); err != nil {
		return nil, err
	}
	return fc, nil
}

func newFeed(c *cli.Context, fc *feedclient.Client) *feed.Feed {
	return feed.New(fc, fc, feed.Options{
		PageSize:    c.Int("page-size"),
		FanoutLimit: c.Int("fanout"),
		Logger:      logger.NewWithWriter(c.App.ErrWriter),
	})
}

// loadUntil pages through the feed until postID is cached or the feed ends.
func loadUntil(c *cli.Context, f *feed.Feed, s feed.Session, postID string) error {
	if err := f.Refresh(c.Context, s); err != nil {
		return err
	}
	for {
		if _, ok := f.Lookup(postID); ok {
			return nil
		}
		if !f.HasMore() {
			return fmt.Errorf("post %s: %w", postID, feed.ErrNotFound)
		}
		if _, err := f.LoadMore(c.Context, s); err != nil {
			return err
		}
	}
}

func postArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%w: expected exactly one POST_ID", feed.ErrValidation)
	}
	return c.Args().First(), nil
}

func signUp(c *cli.Context) error {
	fc := client(c)
	user, err := fc.SignUp(c.Context, c.String("email"), c.String("password"), c.String("name"), c.String("pet-name"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Welcome %s! Signed up as %s\n", user.Name, user.ID)
	fmt.Fprintf(c.App.Writer, "export PETFEED_TOKEN=%s\n", fc.Token())
	return nil
}

func signIn(c *cli.Context) error {
	fc := client(c)
	user, err := fc.SignIn(c.Context, c.String("email"), c.String("password"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Signed in as %s (%s)\n", user.Name, user.ID)
	fmt.Fprintf(c.App.Writer, "export PETFEED_TOKEN=%s\n", fc.Token())
	return nil
}

func signOut(c *cli.Context) error {
	fc, err := session(c)
	if err != nil {
		return err
	}
	if err := fc.SignOut(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Signed out")
	return nil
}

func whoAmI(c *cli.Context) error {
	fc, err := session(c)
	if err != nil {
		return err
	}
	user, err := fc.Me(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s <%s> with %s (%s)\n", user.Name, user.Email, user.PetName, user.ID)
	return nil
}

func createPost(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: expected exactly one IMAGE path", feed.ErrValidation)
	}
	fc, err := session(c)
	if err != nil {
		return err
	}

	path := c.Args().First()
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	post, err := fc.CreatePost(c.Context, c.String("caption"), filepath.Base(path), file)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Posted %s\n", post.ID)
	return nil
}

func showFeed(c *cli.Context) error {
	fc, err := session(c)
	if err != nil {
		return err
	}
	f := newFeed(c, fc)
	s := fc.Session()

	if err := f.Refresh(c.Context, s); err != nil {
		return err
	}
	for i := 1; i < c.Int("pages") && f.HasMore(); i++ {
		if _, err := f.LoadMore(c.Context, s); err != nil {
			return err
		}
	}

	printEntries(c.App.Writer, f.Entries())
	if f.HasMore() {
		fmt.Fprintln(c.App.Writer, "(more posts available, use --pages)")
	}
	return nil
}

func printEntries(w io.Writer, entries []feed.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No posts yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBY\tLIKES\t\tCAPTION\tPOSTED")
	for _, e := range entries {
		mark := ""
		if e.Liked {
			mark = "♥"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.ID, e.PostedUserName, e.LikeCount, mark,
			strings.ReplaceAll(e.Caption, "\n", " "), e.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func toggleLike(c *cli.Context) error {
	postID, err := postArg(c)
	if err != nil {
		return err
	}
	fc, err := session(c)
	if err != nil {
		return err
	}
	f := newFeed(c, fc)
	if err := loadUntil(c, f, fc.Session(), postID); err != nil {
		return err
	}

	liked, err := f.ToggleLike(c.Context, fc.Session(), postID)
	if err != nil {
		return err
	}
	entry, _ := f.Lookup(postID)
	verb := "Unliked"
	if liked {
		verb = "Liked"
	}
	fmt.Fprintf(c.App.Writer, "%s %s (%d likes)\n", verb, postID, entry.LikeCount)
	return nil
}

func editCaption(c *cli.Context) error {
	postID, err := postArg(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.String("caption")) == "" {
		return fmt.Errorf("%w: caption must not be empty", feed.ErrValidation)
	}
	fc, err := session(c)
	if err != nil {
		return err
	}
	f := newFeed(c, fc)
	if err := loadUntil(c, f, fc.Session(), postID); err != nil {
		return err
	}

	if err := f.EditCaption(c.Context, fc.Session(), postID, c.String("caption")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Updated caption of %s\n", postID)
	return nil
}

func deletePost(c *cli.Context) error {
	postID, err := postArg(c)
	if err != nil {
		return err
	}
	fc, err := session(c)
	if err != nil {
		return err
	}
	f := newFeed(c, fc)
	if err := loadUntil(c, f, fc.Session(), postID); err != nil {
		return err
	}

	err = f.DeletePost(c.Context, fc.Session(), postID)
	if feed.IsCleanupWarning(err) {
		fmt.Fprintf(c.App.Writer, "Deleted %s, but some likes were left behind: %v\n", postID, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", postID)
	return nil
}
