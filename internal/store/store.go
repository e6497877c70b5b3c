// Package store contains the persistence layer. Getters return (nil, nil)
// for rows that do not exist; write operations that require the row to exist
// return ErrNotFound when it does not.
package store

import "errors"

// ErrNotFound reports that the referenced item no longer exists. Quantity
// operations recover from it locally (a vanished row is an expected terminal
// state there); other callers surface it as a real error.
var ErrNotFound = errors.New("item not found")
