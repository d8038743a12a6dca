package store

import (
	"fmt"
	"unicode/utf8"
)

// Minimum lengths enforced on create, matching the schema the data was
// originally recorded under.
const (
	minTitleLen    = 5
	minNameLen     = 4
	minUsernameLen = 3
)

// ValidationError reports a document the store refused to save, carrying the
// offending value for diagnostics.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q %s", e.Field, e.Value, e.Reason)
}

func validateBook(b *Book) error {
	if b.Title == "" {
		return &ValidationError{Field: "title", Value: b.Title, Reason: "is required"}
	}
	if utf8.RuneCountInString(b.Title) < minTitleLen {
		return &ValidationError{Field: "title", Value: b.Title, Reason: fmt.Sprintf("is shorter than the minimum length %d", minTitleLen)}
	}
	if b.Published == 0 {
		return &ValidationError{Field: "published", Value: "0", Reason: "is required"}
	}
	if b.AuthorID == "" {
		return &ValidationError{Field: "author", Value: b.AuthorID, Reason: "is required"}
	}
	return nil
}

func validateAuthor(a *Author) error {
	if a.Name == "" {
		return &ValidationError{Field: "name", Value: a.Name, Reason: "is required"}
	}
	if utf8.RuneCountInString(a.Name) < minNameLen {
		return &ValidationError{Field: "name", Value: a.Name, Reason: fmt.Sprintf("is shorter than the minimum length %d", minNameLen)}
	}
	return nil
}

func validateUser(u *User) error {
	if u.Username == "" {
		return &ValidationError{Field: "username", Value: u.Username, Reason: "is required"}
	}
	if utf8.RuneCountInString(u.Username) < minUsernameLen {
		return &ValidationError{Field: "username", Value: u.Username, Reason: fmt.Sprintf("is shorter than the minimum length %d", minUsernameLen)}
	}
	if u.FavouriteGenre == "" {
		return &ValidationError{Field: "favouriteGenre", Value: u.FavouriteGenre, Reason: "is required"}
	}
	return nil
}
