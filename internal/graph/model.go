package graph

import (
	"github.com/andrewwphillips/eggql"

	"github.com/andrewwphillips/libris/internal/store"
)

type (
	// Book is returned with its author populated.
	Book struct {
		ID        eggql.ID `egg:"id"`
		Title     string
		Published int
		Author    Author
		Genres    []string
	}

	// Author carries bookCount derived at query time from the stored books.
	Author struct {
		ID        eggql.ID `egg:"id"`
		Name      string
		Born      *int
		BookCount int
	}

	User struct {
		ID             eggql.ID `egg:"id"`
		Username       string
		FavouriteGenre string
	}

	// Token wraps the signed credential issued at login.
	Token struct {
		Value string
	}
)

func newBook(b store.Book, a store.Author) Book {
	genres := b.Genres
	if genres == nil {
		genres = []string{} // genres is a non-nullable list, possibly empty
	}
	return Book{
		ID:        eggql.ID(b.ID),
		Title:     b.Title,
		Published: b.Published,
		Author:    newAuthor(a),
		Genres:    genres,
	}
}

func newAuthor(a store.Author) Author {
	return Author{
		ID:   eggql.ID(a.ID),
		Name: a.Name,
		Born: a.Born,
	}
}

func newUser(u store.User) User {
	return User{
		ID:             eggql.ID(u.ID),
		Username:       u.Username,
		FavouriteGenre: u.FavouriteGenre,
	}
}
