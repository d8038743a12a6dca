// Package graph is the GraphQL surface of the catalog: the schema types, the
// Query/Mutation/Subscription roots and the handler assembly.  The schema is
// generated from the Go structs by eggql; there is no separate schema file.
package graph

import (
	"net/http"

	"github.com/andrewwphillips/eggql"

	"github.com/andrewwphillips/libris/internal/auth"
	"github.com/andrewwphillips/libris/internal/pubsub"
	"github.com/andrewwphillips/libris/internal/store"
)

// TopicBookAdded is the event channel on which newly stored books are announced.
const TopicBookAdded = "BOOK_ADDED"

// Resolver holds the collaborators the resolvers need: the document store,
// the token authority and the event broker.
type Resolver struct {
	store  *store.Store
	tokens *auth.Authority
	events *pubsub.Broker[Book]
}

func New(st *store.Store, tokens *auth.Authority, events *pubsub.Broker[Book]) *Resolver {
	return &Resolver{store: st, tokens: tokens, events: events}
}

// Query returns the root query struct with its resolvers bound.
func (r *Resolver) Query() Query {
	return Query{
		BookCount:   r.bookCount,
		AuthorCount: r.authorCount,
		AllBooks:    r.allBooks,
		AllAuthors:  r.allAuthors,
		Me:          r.me,
	}
}

// Mutation returns the root mutation struct with its resolvers bound.
func (r *Resolver) Mutation() Mutation {
	return Mutation{
		AddBook:    r.addBook,
		EditAuthor: r.editAuthor,
		CreateUser: r.createUser,
		Login:      r.login,
	}
}

// Subscription returns the root subscription struct with its resolvers bound.
func (r *Resolver) Subscription() Subscription {
	return Subscription{
		BookAdded: r.bookAdded,
	}
}

// Handler assembles the GraphQL HTTP handler, wrapped so that the bearer
// credential (if any) is resolved to the current user before resolvers run.
func (r *Resolver) Handler() (http.Handler, error) {
	gql := eggql.New(r.Query(), r.Mutation(), r.Subscription())
	h, err := gql.GetHandler()
	if err != nil {
		return nil, err
	}
	return auth.Handler(r.tokens, r.store, h), nil
}

// Schema returns the generated GraphQL schema.
func (r *Resolver) Schema() (string, error) {
	gql := eggql.New(r.Query(), r.Mutation(), r.Subscription())
	return gql.GetSchema()
}
