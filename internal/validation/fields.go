// Package validation checks form input before it reaches the feed engine or the session store.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Field names used as FieldErrors keys.
const (
	FieldUsername = "username"
	FieldTitle    = "title"
	FieldContent  = "content"
	FieldComment  = "comment"
)

const (
	usernameMinLength = 3
	usernameMaxLength = 20
)

var lettersOnlyRegex = regexp.MustCompile(`^[a-zA-Z]+$`)

// FieldErrors maps a field name to a single human-readable message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return strings.Join(parts, "; ")
}

func (e FieldErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// SignupInput is the raw signup form.
type SignupInput struct {
	Username string
}

// PostInput is the raw create or edit form.
type PostInput struct {
	Title   string
	Content string
}

// ValidateUsername returns the message for the first rule username breaks, or "".
func ValidateUsername(username string) string {
	n := utf8.RuneCountInString(username)
	switch {
	case n == 0:
		return "Username is required"
	case n < usernameMinLength:
		return fmt.Sprintf("Username must be at least %d characters", usernameMinLength)
	case n > usernameMaxLength:
		return fmt.Sprintf("Username must be at most %d characters", usernameMaxLength)
	case !lettersOnlyRegex.MatchString(username):
		return "Username can only contain letters"
	}
	return ""
}

// ValidateSignup checks the signup form. The username is not trimmed: surrounding whitespace is
// rejected as a non-letter.
func ValidateSignup(in SignupInput) (SignupInput, error) {
	errs := FieldErrors{}
	if msg := ValidateUsername(in.Username); msg != "" {
		errs[FieldUsername] = msg
	}
	return in, errs.orNil()
}

// ValidatePost checks a create or edit form and returns it trimmed.
func ValidatePost(in PostInput) (PostInput, error) {
	out := PostInput{
		Title:   strings.TrimSpace(in.Title),
		Content: strings.TrimSpace(in.Content),
	}
	errs := FieldErrors{}
	if out.Title == "" {
		errs[FieldTitle] = "Title is required"
	}
	if out.Content == "" {
		errs[FieldContent] = "Content is required"
	}
	return out, errs.orNil()
}

// ValidateComment checks comment text and returns it trimmed.
func ValidateComment(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", FieldErrors{FieldComment: "Comment is required"}
	}
	return trimmed, nil
}
