package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"postsync/internal/feed"
	"postsync/internal/interactions"
	"postsync/internal/models"
	"postsync/internal/notifications"
	"postsync/internal/session"
	"postsync/internal/textfmt"
	"postsync/internal/validation"
)

var (
	errUsage       = errors.New("invalid usage")
	errSignedOut   = errors.New("not signed in, run: postsync signup <username>")
	errNotOwner    = errors.New("only the author can change this post")
	errUnknownPost = errors.New("post not found")
)

type client struct {
	engine   *feed.Engine
	session  *session.Store
	bus      *notifications.Bus
	out      io.Writer
	now      func() time.Time
	readFile func(string) ([]byte, error)
}

func newClient(engine *feed.Engine, sess *session.Store, bus *notifications.Bus, out io.Writer) *client {
	return &client{
		engine:   engine,
		session:  sess,
		bus:      bus,
		out:      out,
		now:      time.Now,
		readFile: os.ReadFile,
	}
}

func (c *client) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	command, rest := args[0], args[1:]

	switch command {
	case "signup":
		return c.signup(ctx, rest)
	case "whoami":
		return c.whoami(ctx)
	case "logout":
		c.session.SignOut(ctx)
		fmt.Fprintln(c.out, "Signed out")
		return nil
	case "list":
		return c.list(ctx)
	case "create":
		return c.create(ctx, rest)
	case "edit":
		return c.edit(ctx, rest)
	case "delete":
		return c.delete(ctx, rest)
	case "like":
		return c.like(ctx, rest)
	case "comment":
		return c.comment(ctx, rest)
	case "watch":
		return c.watch(ctx)
	default:
		return errUsage
	}
}

func (c *client) signup(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	user, err := c.session.SignUp(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Signed in as @%s\n", user.Username)
	return nil
}

func (c *client) whoami(ctx context.Context) error {
	user, ok := c.session.Current(ctx)
	if !ok {
		return errSignedOut
	}
	fmt.Fprintf(c.out, "@%s\n", user.Username)
	return nil
}

func (c *client) list(ctx context.Context) error {
	posts := c.engine.List(ctx)
	if msg := c.engine.Err(); msg != "" {
		return errors.New(msg)
	}
	if len(posts) == 0 {
		fmt.Fprintln(c.out, "No posts yet")
		return nil
	}
	for _, p := range posts {
		c.printPost(p)
	}
	return nil
}

func (c *client) create(ctx context.Context, args []string) error {
	user, ok := c.session.Current(ctx)
	if !ok {
		return errSignedOut
	}

	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post body")
	imagePath := fs.String("image", "", "image file to attach")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	in, err := validation.ValidatePost(validation.PostInput{Title: *title, Content: *content})
	if err != nil {
		return err
	}
	data := models.CreatePostData{Username: user.Username, Title: in.Title, Content: in.Content}
	if *imagePath != "" {
		if data.ImageURL, err = c.loadImage(*imagePath); err != nil {
			return err
		}
	}

	post, err := c.engine.Create(ctx, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created post #%d\n", post.ID)
	return nil
}

func (c *client) edit(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errUsage
	}

	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	title := fs.String("title", "", "new title")
	content := fs.String("content", "", "new body")
	imagePath := fs.String("image", "", "replace the image with this file")
	clearImage := fs.Bool("clear-image", false, "remove the image")
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}
	if *imagePath != "" && *clearImage {
		return errUsage
	}

	post, err := c.ownedPost(ctx, id)
	if err != nil {
		return err
	}
	if *title == "" {
		*title = post.Title
	}
	if *content == "" {
		*content = post.Content
	}
	in, err := validation.ValidatePost(validation.PostInput{Title: *title, Content: *content})
	if err != nil {
		return err
	}

	data := models.UpdatePostData{Title: in.Title, Content: in.Content, Image: models.KeepImage()}
	switch {
	case *clearImage:
		data.Image = models.ClearImage()
	case *imagePath != "":
		uri, err := c.loadImage(*imagePath)
		if err != nil {
			return err
		}
		data.Image = models.SetImage(uri)
	}

	if _, err := c.engine.Update(ctx, id, data); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated post #%d\n", id)
	return nil
}

func (c *client) delete(ctx context.Context, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}
	if _, err := c.ownedPost(ctx, id); err != nil {
		return err
	}
	if err := c.engine.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted post #%d\n", id)
	return nil
}

func (c *client) like(ctx context.Context, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}
	if _, err := c.knownPost(ctx, id); err != nil {
		return err
	}
	c.engine.Like(ctx, id)
	post, _ := c.engine.Post(id)
	fmt.Fprintf(c.out, "Post #%d now has %s\n", id, plural(post.Likes, "like"))
	return nil
}

func (c *client) comment(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errUsage
	}
	user, ok := c.session.Current(ctx)
	if !ok {
		return errSignedOut
	}
	text, err := validation.ValidateComment(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if _, err := c.knownPost(ctx, id); err != nil {
		return err
	}
	c.engine.Comment(ctx, id, text, user.Username)
	fmt.Fprintf(c.out, "Commented on post #%d\n", id)
	return nil
}

// watch prints storage changes until ctx is cancelled. With Redis storage this includes writes
// made by other processes.
func (c *client) watch(ctx context.Context) error {
	stopUser := c.session.Watch(ctx, func(user models.User, signedIn bool) {
		if signedIn {
			fmt.Fprintf(c.out, "session: signed in as @%s\n", user.Username)
			return
		}
		fmt.Fprintln(c.out, "session: signed out")
	})
	defer stopUser()

	unsubscribe := c.bus.Subscribe(func(ch notifications.Change) {
		if !isInteractionKey(ch.Key) {
			return
		}
		verb := "updated"
		if ch.Removed {
			verb = "removed"
		}
		fmt.Fprintf(c.out, "storage: %s %s\n", ch.Key, verb)
	})
	defer unsubscribe()

	fmt.Fprintln(c.out, "Watching local storage, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

// knownPost loads the feed and returns the post with id.
func (c *client) knownPost(ctx context.Context, id int) (models.Post, error) {
	c.engine.List(ctx)
	if msg := c.engine.Err(); msg != "" {
		return models.Post{}, errors.New(msg)
	}
	post, ok := c.engine.Post(id)
	if !ok {
		return models.Post{}, fmt.Errorf("%w: #%d", errUnknownPost, id)
	}
	return post, nil
}

func (c *client) ownedPost(ctx context.Context, id int) (models.Post, error) {
	user, ok := c.session.Current(ctx)
	if !ok {
		return models.Post{}, errSignedOut
	}
	post, err := c.knownPost(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	if !post.OwnedBy(user.Username) {
		return models.Post{}, errNotOwner
	}
	return post, nil
}

// loadImage reads a file into a base64 data URI.
func (c *client) loadImage(path string) (string, error) {
	raw, err := c.readFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func (c *client) printPost(p models.Post) {
	fmt.Fprintf(c.out, "#%d @%s · %s\n", p.ID, p.Username, textfmt.RelativeTime(p.CreatedDatetime, c.now()))
	fmt.Fprintf(c.out, "  %s\n", p.Title)
	fmt.Fprintf(c.out, "  %s\n", highlight(p.Content))
	if p.ImageURL != "" {
		fmt.Fprintln(c.out, "  [image attached]")
	}
	fmt.Fprintf(c.out, "  %s, %s\n", plural(p.Likes, "like"), plural(len(p.CommentsList), "comment"))
	for _, cm := range p.CommentsList {
		fmt.Fprintf(c.out, "    @%s: %s (%s)\n", cm.Username, highlight(cm.Content), textfmt.RelativeTime(cm.CreatedDatetime, c.now()))
	}
}

// highlight renders mentions in brackets.
func highlight(text string) string {
	var b strings.Builder
	for _, seg := range textfmt.SplitMentions(text) {
		if seg.Mention {
			b.WriteString("[" + seg.Text + "]")
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

func singleID(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errUsage
	}
	return id, nil
}

func isInteractionKey(key string) bool {
	return strings.HasPrefix(key, interactions.ImagePrefix) ||
		strings.HasPrefix(key, interactions.LikesPrefix) ||
		strings.HasPrefix(key, interactions.CommentsPrefix)
}
