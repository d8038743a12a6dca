package graph

import (
	"context"

	"github.com/pkg/errors"

	"github.com/andrewwphillips/libris/internal/auth"
	"github.com/andrewwphillips/libris/internal/store"
)

// sentinelPassword is the only password login accepts.  There is no per-user
// credential storage - a development placeholder, not a production check.
const sentinelPassword = "secret"

// Mutation declares the write operations.  addBook and editAuthor require an
// authenticated request; createUser and login do not.
type Mutation struct {
	AddBook    func(context.Context, string, string, int, []string) (*Book, error) `egg:"addBook(title,author,published,genres)"`
	EditAuthor func(context.Context, string, int) (*Author, error)                 `egg:"editAuthor(name,setBornTo)"`
	CreateUser func(context.Context, string, string) (*User, error)                `egg:"createUser(username,favouriteGenre)"`
	Login      func(context.Context, string, string) (*Token, error)               `egg:"login(username,password)"`
}

// addBook resolves the author by name, creating it first if absent, then
// persists the book and announces it to subscribers.  The two writes are
// independent: if saving the book fails the new author remains, which is
// acceptable as authors may exist without books.
func (r *Resolver) addBook(ctx context.Context, title, author string, published int, genres []string) (*Book, error) {
	if auth.UserFrom(ctx) == nil {
		return nil, ErrNotAuthenticated
	}

	a, err := r.store.AuthorByName(ctx, author)
	if errors.Is(err, store.ErrNotFound) {
		a = &store.Author{Name: author}
		if err = r.store.AddAuthor(ctx, a); err != nil {
			return nil, &InputError{Op: "saving new author failed", Arg: author, Err: err}
		}
	} else if err != nil {
		return nil, err
	}

	rec := &store.Book{Title: title, Published: published, AuthorID: a.ID, Genres: genres}
	if err := r.store.AddBook(ctx, rec); err != nil {
		return nil, &InputError{Op: "saving new book failed", Arg: title, Err: err}
	}

	book := newBook(*rec, *a)
	r.events.Publish(TopicBookAdded, book)
	return &book, nil
}

// editAuthor sets an author's birth year.  An unknown name is not an error:
// the result is null.
func (r *Resolver) editAuthor(ctx context.Context, name string, setBornTo int) (*Author, error) {
	if auth.UserFrom(ctx) == nil {
		return nil, ErrNotAuthenticated
	}

	rec, err := r.store.AuthorByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Born = &setBornTo
	if err := r.store.UpdateAuthor(ctx, rec); err != nil {
		return nil, &InputError{Op: "updating author failed", Arg: name, Err: err}
	}
	author := newAuthor(*rec)
	return &author, nil
}

func (r *Resolver) createUser(ctx context.Context, username, favouriteGenre string) (*User, error) {
	rec := &store.User{Username: username, FavouriteGenre: favouriteGenre}
	if err := r.store.AddUser(ctx, rec); err != nil {
		return nil, &InputError{Op: "adding new user failed", Arg: username, Err: err}
	}
	user := newUser(*rec)
	return &user, nil
}

// login issues a signed token for the user.  A missing user and a wrong
// password are reported identically.
func (r *Resolver) login(ctx context.Context, username, password string) (*Token, error) {
	user, err := r.store.UserByName(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrWrongCredentials
	}
	if err != nil {
		return nil, err
	}
	if password != sentinelPassword {
		return nil, ErrWrongCredentials
	}

	value, err := r.tokens.Issue(auth.Identity{Username: user.Username, UserID: user.ID})
	if err != nil {
		return nil, err
	}
	return &Token{Value: value}, nil
}
