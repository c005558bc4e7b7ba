package repositories

import "errors"

// ErrEmailInUse is returned when registering or updating an account with an
// email address that belongs to another user.
var ErrEmailInUse = errors.New("repositories: email address already in use")

// ErrUserNotFound is returned when the referenced account does not exist.
var ErrUserNotFound = errors.New("repositories: user not found")
