// Package store persists the catalog's documents (books, authors, users) in
// an embedded badger database.  Each document is stored as JSON under a
// "<collection>/<id>" key; unique fields (author name, username) get a
// separate index key written in the same transaction so uniqueness cannot
// race.
package store

import (
	"context"
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by the lookup methods when no document matches.
var ErrNotFound = errors.New("not found")

// Key prefixes for the document collections and the unique indexes.
const (
	bookPrefix   = "books/"
	authorPrefix = "authors/"
	userPrefix   = "users/"

	authorNameIndex = "idx/authors/name/"
	usernameIndex   = "idx/users/username/"
)

type (
	// Book is immutable once created and always references an existing Author.
	Book struct {
		ID        string   `json:"id"`
		Title     string   `json:"title"`
		Published int      `json:"published"`
		AuthorID  string   `json:"authorId"`
		Genres    []string `json:"genres"`
	}

	// Author is identified by its unique name; Born is optional.
	Author struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Born *int   `json:"born,omitempty"`
	}

	// User has no stored password - authentication uses a fixed shared secret.
	User struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		FavouriteGenre string `json:"favouriteGenre"`
	}

	// Store provides find/create/update/count operations per collection.
	Store struct {
		db *badger.DB
	}
)

// Open opens (creating if necessary) the document store in the given directory.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrapf(err, "opening document store in %q", dir)
	}
	glog.V(1).Infof("document store open in %s", dir)
	return &Store{db: db}, nil
}

// OpenInMemory opens a store that lives only as long as the process - used in tests.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory document store")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// AddBook validates and persists a new book, assigning its ID.  The referenced
// author must already exist (the caller resolves or creates it first).
func (s *Store) AddBook(ctx context.Context, b *Book) error {
	if err := validateBook(b); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.ID = uuid.NewString()
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(authorPrefix + b.AuthorID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &ValidationError{Field: "author", Value: b.AuthorID, Reason: "references an unknown author"}
			}
			return err
		}
		return putDoc(txn, bookPrefix+b.ID, b)
	})
}

// Books returns every book in the store.
func (s *Store) Books(ctx context.Context) ([]Book, error) {
	return s.FindBooks(ctx, "", "")
}

// FindBooks returns the books matching the given filters, combined with
// logical AND.  An empty authorID or genre means that filter is absent.
func (s *Store) FindBooks(ctx context.Context, authorID, genre string) ([]Book, error) {
	var books []Book
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		books, err = scan[Book](ctx, txn, bookPrefix, func(b *Book) bool {
			if authorID != "" && b.AuthorID != authorID {
				return false
			}
			return genre == "" || b.hasGenre(genre)
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "finding books")
	}
	return books, nil
}

// CountBooks returns the total number of stored books.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	return s.count(ctx, bookPrefix)
}

// AddAuthor validates and persists a new author, assigning its ID.  The
// author's name must not already be taken.
func (s *Store) AddAuthor(ctx context.Context, a *Author) error {
	if err := validateAuthor(a); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	a.ID = uuid.NewString()
	return s.db.Update(func(txn *badger.Txn) error {
		if err := claimUnique(txn, authorNameIndex+a.Name, a.ID, "name", a.Name); err != nil {
			return err
		}
		return putDoc(txn, authorPrefix+a.ID, a)
	})
}

// UpdateAuthor rewrites an existing author document (used to set born).
func (s *Store) UpdateAuthor(ctx context.Context, a *Author) error {
	if err := validateAuthor(a); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(authorPrefix + a.ID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return putDoc(txn, authorPrefix+a.ID, a)
	})
}

// Authors returns every author in the store.
func (s *Store) Authors(ctx context.Context) ([]Author, error) {
	var authors []Author
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		authors, err = scan[Author](ctx, txn, authorPrefix, nil)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing authors")
	}
	return authors, nil
}

// AuthorByID returns the author with the given ID or ErrNotFound.
func (s *Store) AuthorByID(ctx context.Context, id string) (*Author, error) {
	var a Author
	if err := s.getDoc(ctx, authorPrefix+id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AuthorByName returns the author with the given (unique) name or ErrNotFound.
func (s *Store) AuthorByName(ctx context.Context, name string) (*Author, error) {
	id, err := s.lookupIndex(ctx, authorNameIndex+name)
	if err != nil {
		return nil, err
	}
	return s.AuthorByID(ctx, id)
}

// CountAuthors returns the total number of stored authors.
func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	return s.count(ctx, authorPrefix)
}

// AddUser validates and persists a new user, assigning its ID.  The username
// must not already be taken.
func (s *Store) AddUser(ctx context.Context, u *User) error {
	if err := validateUser(u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u.ID = uuid.NewString()
	return s.db.Update(func(txn *badger.Txn) error {
		if err := claimUnique(txn, usernameIndex+u.Username, u.ID, "username", u.Username); err != nil {
			return err
		}
		return putDoc(txn, userPrefix+u.ID, u)
	})
}

// UserByID returns the user with the given ID or ErrNotFound.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.getDoc(ctx, userPrefix+id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByName returns the user with the given (unique) username or ErrNotFound.
func (s *Store) UserByName(ctx context.Context, username string) (*User, error) {
	id, err := s.lookupIndex(ctx, usernameIndex+username)
	if err != nil {
		return nil, err
	}
	return s.UserByID(ctx, id)
}

func (b *Book) hasGenre(genre string) bool {
	for _, g := range b.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// putDoc JSON-encodes a document and writes it under the given key.
func putDoc(txn *badger.Txn, key string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrapf(err, "encoding %q", key)
	}
	return txn.Set([]byte(key), data)
}

// claimUnique writes a unique-index entry, failing with a ValidationError if
// the indexed value is already taken.
func claimUnique(txn *badger.Txn, key, id, field, value string) error {
	_, err := txn.Get([]byte(key))
	if err == nil {
		return &ValidationError{Field: field, Value: value, Reason: "must be unique"}
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Set([]byte(key), []byte(id))
}

func (s *Store) getDoc(ctx context.Context, key string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return errors.Wrapf(err, "reading %q", key)
}

func (s *Store) lookupIndex(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	return id, errors.Wrapf(err, "reading index %q", key)
}

func (s *Store) count(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "counting %q", prefix)
	}
	return n, nil
}

// scan decodes every document under prefix, keeping those the filter accepts
// (a nil filter keeps all).  The context is checked as the iteration runs so
// a cancelled request does not finish a long scan.
func scan[T any](ctx context.Context, txn *badger.Txn, prefix string, keep func(*T) bool) ([]T, error) {
	docs := make([]T, 0)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var doc T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(&doc) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
