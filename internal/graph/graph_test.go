package graph_test

// End-to-end tests that POST GraphQL requests to the assembled handler
// (including the bearer-token middleware) and check the {data, errors} result.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/andrewwphillips/libris/internal/auth"
	"github.com/andrewwphillips/libris/internal/graph"
	"github.com/andrewwphillips/libris/internal/pubsub"
	"github.com/andrewwphillips/libris/internal/store"
)

// JsonObject is what json.Unmarshal produces when it decodes a JSON object.
type JsonObject = map[string]interface{}

const testSecret = "test-secret"

type fixture struct {
	server   *httptest.Server
	resolver *graph.Resolver
	store    *store.Store
	tokens   *auth.Authority
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	tokens := auth.New(testSecret)
	resolver := graph.New(st, tokens, pubsub.New[graph.Book](8))
	handler, err := resolver.Handler()
	if err != nil {
		t.Fatalf("building handler: %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &fixture{server: server, resolver: resolver, store: st, tokens: tokens}
}

// seedCatalog stores two authors and three books directly.
func (f *fixture) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	herbert := &store.Author{Name: "Frank Herbert"}
	leguin := &store.Author{Name: "Ursula K. Le Guin"}
	for _, a := range []*store.Author{herbert, leguin} {
		if err := f.store.AddAuthor(ctx, a); err != nil {
			t.Fatalf("seeding author %s: %v", a.Name, err)
		}
	}
	books := []*store.Book{
		{Title: "Dune Messiah", Published: 1969, AuthorID: herbert.ID, Genres: []string{"scifi", "classic"}},
		{Title: "The Dispossessed", Published: 1974, AuthorID: leguin.ID, Genres: []string{"scifi"}},
		{Title: "A Wizard of Earthsea", Published: 1968, AuthorID: leguin.ID, Genres: []string{"fantasy"}},
	}
	for _, b := range books {
		if err := f.store.AddBook(ctx, b); err != nil {
			t.Fatalf("seeding book %s: %v", b.Title, err)
		}
	}
}

// loginAs stores a user and returns a valid token for it.
func (f *fixture) loginAs(t *testing.T, username string) string {
	t.Helper()
	u := &store.User{Username: username, FavouriteGenre: "scifi"}
	if err := f.store.AddUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
	token, err := f.tokens.Issue(auth.Identity{Username: u.Username, UserID: u.ID})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}

// post sends a GraphQL query (with optional bearer token) and decodes the response.
func (f *fixture) post(t *testing.T, token, query string) (JsonObject, []string) {
	t.Helper()
	body, err := json.Marshal(JsonObject{"query": query})
	if err != nil {
		t.Fatalf("encoding request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, f.server.URL, strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("POSTing the query: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		Data   JsonObject
		Errors []struct{ Message string }
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	var messages []string
	for _, e := range result.Errors {
		messages = append(messages, e.Message)
	}
	return result.Data, messages
}

// titles extracts and sorts the title field of a list result (the store does
// not promise an order).
func titles(t *testing.T, data JsonObject, field string) []string {
	t.Helper()
	list, ok := data[field].([]interface{})
	if !ok {
		t.Fatalf("expected %q to be a list, got %v", field, data[field])
	}
	var out []string
	for _, item := range list {
		out = append(out, item.(JsonObject)["title"].(string))
	}
	sort.Strings(out)
	return out
}

func TestCounts(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t)

	data, errs := f.post(t, "", `{ bookCount authorCount }`)
	Assertf(t, errs == nil, "counts: expected no errors, got %v", errs)
	Assertf(t, reflect.DeepEqual(data, JsonObject{"bookCount": 3.0, "authorCount": 2.0}), "counts: got %v", data)
}

func TestAllBooks(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t)

	tests := map[string]struct {
		query    string
		expected []string // sorted titles
	}{
		"all": {
			query:    `{ allBooks { title } }`,
			expected: []string{"A Wizard of Earthsea", "Dune Messiah", "The Dispossessed"},
		},
		"by author": {
			query:    `{ allBooks(author: "Ursula K. Le Guin") { title } }`,
			expected: []string{"A Wizard of Earthsea", "The Dispossessed"},
		},
		"by genre": {
			query:    `{ allBooks(genre: "scifi") { title } }`,
			expected: []string{"Dune Messiah", "The Dispossessed"},
		},
		"author and genre": {
			query:    `{ allBooks(author: "Ursula K. Le Guin", genre: "scifi") { title } }`,
			expected: []string{"The Dispossessed"},
		},
		"unknown author": {
			query:    `{ allBooks(author: "Nobody Knows") { title } }`,
			expected: nil,
		},
		"unmatched genre": {
			query:    `{ allBooks(genre: "cooking") { title } }`,
			expected: nil,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			data, errs := f.post(t, "", test.query)
			Assertf(t, errs == nil, "%-16s: expected no errors, got %v", name, errs)
			got := titles(t, data, "allBooks")
			Assertf(t, reflect.DeepEqual(got, test.expected), "%-16s: expected %v, got %v", name, test.expected, got)
		})
	}
}

func TestAllBooksPopulatesAuthor(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t)

	data, errs := f.post(t, "", `{ allBooks(genre: "fantasy") { title published genres author { name } } }`)
	Assertf(t, errs == nil, "expected no errors, got %v", errs)
	expected := JsonObject{"allBooks": []interface{}{
		JsonObject{
			"title":     "A Wizard of Earthsea",
			"published": 1968.0,
			"genres":    []interface{}{"fantasy"},
			"author":    JsonObject{"name": "Ursula K. Le Guin"},
		},
	}}
	Assertf(t, reflect.DeepEqual(data, expected), "expected %v, got %v", expected, data)
}

func TestAllAuthorsBookCount(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t)

	data, errs := f.post(t, "", `{ allAuthors { name born bookCount } }`)
	Assertf(t, errs == nil, "expected no errors, got %v", errs)

	counts := map[string]float64{}
	for _, item := range data["allAuthors"].([]interface{}) {
		a := item.(JsonObject)
		counts[a["name"].(string)] = a["bookCount"].(float64)
		Assertf(t, a["born"] == nil, "expected born to be null for %v, got %v", a["name"], a["born"])
	}
	expected := map[string]float64{"Frank Herbert": 1, "Ursula K. Le Guin": 2}
	Assertf(t, reflect.DeepEqual(counts, expected), "expected %v, got %v", expected, counts)
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	data, errs := f.post(t, "", `{ me { username } }`)
	Assertf(t, errs == nil, "anonymous: expected no errors, got %v", errs)
	Assertf(t, reflect.DeepEqual(data, JsonObject{"me": nil}), "anonymous: expected null me, got %v", data)

	token := f.loginAs(t, "alice")
	data, errs = f.post(t, token, `{ me { username favouriteGenre } }`)
	Assertf(t, errs == nil, "logged in: expected no errors, got %v", errs)
	expected := JsonObject{"me": JsonObject{"username": "alice", "favouriteGenre": "scifi"}}
	Assertf(t, reflect.DeepEqual(data, expected), "logged in: expected %v, got %v", expected, data)
}

const addBookMutation = `mutation {
  addBook(title: "Dune Messiah", author: "Frank Herbert", published: 1969, genres: ["scifi"]) {
    title published genres author { name born }
  }
}`

func TestAddBookRequiresAuth(t *testing.T) {
	f := newFixture(t)

	_, errs := f.post(t, "", addBookMutation)
	Assertf(t, len(errs) == 1 && strings.Contains(errs[0], "not authenticated"),
		"expected a not-authenticated error, got %v", errs)

	// the rejected mutation must have no side effects, not even the author
	n, err := f.store.CountAuthors(context.Background())
	Assertf(t, err == nil && n == 0, "expected no authors to be created, got %d (err %v)", n, err)
	n, err = f.store.CountBooks(context.Background())
	Assertf(t, err == nil && n == 0, "expected no books to be created, got %d (err %v)", n, err)
}

func TestAddBookCreatesAuthor(t *testing.T) {
	f := newFixture(t)
	token := f.loginAs(t, "alice")

	data, errs := f.post(t, token, addBookMutation)
	Assertf(t, errs == nil, "expected no errors, got %v", errs)
	expected := JsonObject{"addBook": JsonObject{
		"title":     "Dune Messiah",
		"published": 1969.0,
		"genres":    []interface{}{"scifi"},
		"author":    JsonObject{"name": "Frank Herbert", "born": nil},
	}}
	Assertf(t, reflect.DeepEqual(data, expected), "expected %v, got %v", expected, data)

	// exactly one author was created, with no born value
	authors, err := f.store.Authors(context.Background())
	Assertf(t, err == nil && len(authors) == 1, "expected exactly one author, got %d (err %v)", len(authors), err)

	// counts reflect the new book
	data, errs = f.post(t, "", `{ bookCount authorCount }`)
	Assertf(t, errs == nil, "counts: expected no errors, got %v", errs)
	Assertf(t, reflect.DeepEqual(data, JsonObject{"bookCount": 1.0, "authorCount": 1.0}), "counts: got %v", data)
}

func TestAddBookTwiceCreatesTwoBooks(t *testing.T) {
	f := newFixture(t)
	token := f.loginAs(t, "alice")

	// no dedup key: identical calls create distinct books under one author
	for i := 0; i < 2; i++ {
		_, errs := f.post(t, token, addBookMutation)
		Assertf(t, errs == nil, "call %d: expected no errors, got %v", i, errs)
	}
	data, errs := f.post(t, "", `{ bookCount authorCount }`)
	Assertf(t, errs == nil, "counts: expected no errors, got %v", errs)
	Assertf(t, reflect.DeepEqual(data, JsonObject{"bookCount": 2.0, "authorCount": 1.0}), "counts: got %v", data)
}

func TestAddBookValidation(t *testing.T) {
	f := newFixture(t)
	token := f.loginAs(t, "alice")

	_, errs := f.post(t, token, `mutation {
	  addBook(title: "Dune", author: "Frank Herbert", published: 1965, genres: ["scifi"]) { title }
	}`)
	Assertf(t, len(errs) == 1 && strings.Contains(errs[0], "saving new book failed"),
		"expected a validation error carrying the title, got %v", errs)
	Assertf(t, len(errs) == 1 && strings.Contains(errs[0], `"Dune"`),
		"expected the offending title in the error, got %v", errs)

	// the author upsert preceded the failed book save and is kept
	n, err := f.store.CountAuthors(context.Background())
	Assertf(t, err == nil && n == 1, "expected the author to persist, got %d (err %v)", n, err)
}

func TestEditAuthor(t *testing.T) {
	f := newFixture(t)
	f.seedCatalog(t)
	token := f.loginAs(t, "alice")

	data, errs := f.post(t, token, `mutation { editAuthor(name: "Frank Herbert", setBornTo: 1920) { name born } }`)
	Assertf(t, errs == nil, "expected no errors, got %v", errs)
	expected := JsonObject{"editAuthor": JsonObject{"name": "Frank Herbert", "born": 1920.0}}
	Assertf(t, reflect.DeepEqual(data, expected), "expected %v, got %v", expected, data)

	// unknown author is a null result, not an error
	data, errs = f.post(t, token, `mutation { editAuthor(name: "Nobody Knows", setBornTo: 1900) { name } }`)
	Assertf(t, errs == nil, "unknown: expected no errors, got %v", errs)
	Assertf(t, reflect.DeepEqual(data, JsonObject{"editAuthor": nil}), "unknown: expected null, got %v", data)

	// requires auth
	_, errs = f.post(t, "", `mutation { editAuthor(name: "Frank Herbert", setBornTo: 1920) { name } }`)
	Assertf(t, len(errs) == 1 && strings.Contains(errs[0], "not authenticated"),
		"anonymous: expected a not-authenticated error, got %v", errs)
}

func TestCreateUserAndLogin(t *testing.T) {
	f := newFixture(t)

	data, errs := f.post(t, "", `mutation { createUser(username: "alice", favouriteGenre: "fantasy") { username favouriteGenre } }`)
	Assertf(t, errs == nil, "createUser: expected no errors, got %v", errs)
	expected := JsonObject{"createUser": JsonObject{"username": "alice", "favouriteGenre": "fantasy"}}
	Assertf(t, reflect.DeepEqual(data, expected), "createUser: expected %v, got %v", expected, data)

	// duplicate username is rejected by the store
	_, errs = f.post(t, "", `mutation { createUser(username: "alice", favouriteGenre: "scifi") { username } }`)
	Assertf(t, len(errs) == 1 && strings.Contains(errs[0], "adding new user failed"),
		"duplicate: expected a validation error, got %v", errs)

	// wrong password and unknown user fail identically
	for name, q := range map[string]string{
		"wrong password": `mutation { login(username: "alice", password: "hunter2") { value } }`,
		"unknown user":   `mutation { login(username: "bob", password: "secret") { value } }`,
	} {
		_, errs = f.post(t, "", q)
		Assertf(t, len(errs) == 1 && errs[0] == "wrong credentials", "%s: expected wrong credentials, got %v", name, errs)
	}

	// correct sentinel password returns a token that verifies to the same identity
	data, errs = f.post(t, "", `mutation { login(username: "alice", password: "secret") { value } }`)
	Assertf(t, errs == nil, "login: expected no errors, got %v", errs)
	value, _ := data["login"].(JsonObject)["value"].(string)
	Assertf(t, value != "", "login: expected a token value, got %v", data)

	tokens := auth.New(testSecret)
	identity, err := tokens.Verify(value)
	Assertf(t, err == nil, "verify: expected no error, got %v", err)
	alice, err := f.store.UserByName(context.Background(), "alice")
	Assertf(t, err == nil, "lookup: expected no error, got %v", err)
	Assertf(t, identity.Username == "alice" && identity.UserID == alice.ID,
		"verify: expected identity of alice/%s, got %+v", alice.ID, identity)

	// the issued token authenticates subsequent requests
	data, errs = f.post(t, value, `{ me { username } }`)
	Assertf(t, errs == nil, "me: expected no errors, got %v", errs)
	Assertf(t, reflect.DeepEqual(data, JsonObject{"me": JsonObject{"username": "alice"}}), "me: got %v", data)
}

// Assertf displays a tick or cross depending on the success of the check and
// a formatted message when it failed.
func Assertf(t *testing.T, succeeded bool, format string, args ...interface{}) {
	const (
		succeed = "✓" // tick
		failed  = "XXXXX"
	)

	t.Helper()
	if !succeeded {
		t.Errorf("%-6s"+format, append([]interface{}{failed}, args...)...)
	} else {
		t.Logf("%-6s"+format, append([]interface{}{succeed}, args...)...)
	}
}
