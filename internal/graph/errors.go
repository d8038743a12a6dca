package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors returned by the resolvers.  eggql surfaces a resolver error
// as the GraphQL error message, so the kind is the message itself.
var (
	// ErrNotAuthenticated is returned by protected mutations before any side
	// effect when the request carries no verified identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrWrongCredentials is returned on a failed login.  It deliberately does
	// not say whether the user was unknown or the password wrong.
	ErrWrongCredentials = errors.New("wrong credentials")
)

// InputError reports a write the store rejected, carrying the offending
// argument value for diagnostics.
type InputError struct {
	Op  string // e.g. "saving new book failed"
	Arg string // the offending input value
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v (invalid argument %q)", e.Op, e.Err, e.Arg)
}

func (e *InputError) Unwrap() error { return e.Err }
