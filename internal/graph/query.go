package graph

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/andrewwphillips/libris/internal/auth"
	"github.com/andrewwphillips/libris/internal/store"
)

// Query declares the read-only operations.  The author and genre filters of
// allBooks default to the empty string, which means "filter absent".
type Query struct {
	BookCount   func(context.Context) (int, error)
	AuthorCount func(context.Context) (int, error)
	AllBooks    func(context.Context, string, string) ([]Book, error) `egg:"allBooks(author=\"\",genre=\"\")"`
	AllAuthors  func(context.Context) ([]Author, error)
	Me          func(context.Context) (*User, error)
}

func (r *Resolver) bookCount(ctx context.Context) (int, error) {
	return r.store.CountBooks(ctx)
}

func (r *Resolver) authorCount(ctx context.Context) (int, error) {
	return r.store.CountAuthors(ctx)
}

// allBooks returns all books with their author populated, optionally
// restricted by author name and/or genre (combined with AND).  An author
// filter naming an unknown author short-circuits to an empty result without
// scanning the books.
func (r *Resolver) allBooks(ctx context.Context, author, genre string) ([]Book, error) {
	authorID := ""
	if author != "" {
		a, err := r.store.AuthorByName(ctx, author)
		if errors.Is(err, store.ErrNotFound) {
			return []Book{}, nil
		}
		if err != nil {
			return nil, err
		}
		authorID = a.ID
	}

	records, err := r.store.FindBooks(ctx, authorID, genre)
	if err != nil {
		return nil, err
	}
	authors, err := r.authorsByID(ctx)
	if err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(records))
	for _, rec := range records {
		books = append(books, newBook(rec, authors[rec.AuthorID]))
	}
	return books, nil
}

// allAuthors fetches the authors and the books concurrently and derives each
// author's bookCount by counting books in memory, avoiding a query per author.
func (r *Resolver) allAuthors(ctx context.Context) ([]Author, error) {
	var (
		records []store.Author
		books   []store.Book
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = r.store.Authors(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		books, err = r.store.Books(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(records))
	for _, b := range books {
		counts[b.AuthorID]++
	}
	authors := make([]Author, 0, len(records))
	for _, rec := range records {
		a := newAuthor(rec)
		a.BookCount = counts[rec.ID]
		authors = append(authors, a)
	}
	return authors, nil
}

// me returns the current user from the request context, or null if anonymous.
func (r *Resolver) me(ctx context.Context) (*User, error) {
	u := auth.UserFrom(ctx)
	if u == nil {
		return nil, nil
	}
	user := newUser(*u)
	return &user, nil
}

// authorsByID loads every author into a map in one scan so that populating a
// list of books does not need a lookup per book.
func (r *Resolver) authorsByID(ctx context.Context) (map[string]store.Author, error) {
	records, err := r.store.Authors(ctx)
	if err != nil {
		return nil, err
	}
	authors := make(map[string]store.Author, len(records))
	for _, a := range records {
		authors[a.ID] = a
	}
	return authors, nil
}
