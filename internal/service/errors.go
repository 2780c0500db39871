package service

import (
	"github.com/pkg/errors"
)

// Sentinel errors the transport layer maps onto HTTP statuses. Absent and
// not-owned are deliberately the same error so handlers cannot leak the
// existence of other users' resources.
var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNameTaken      = errors.New("username already taken")
	ErrEmailInUse         = errors.New("email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNothingToUpdate    = errors.New("no valid fields provided for update")

	ErrTagNotFound = errors.New("tag not found")
	ErrTagExists   = errors.New("tag already exists")

	ErrSnippetNotFound = errors.New("snippet not found")
	ErrInvalidTags     = errors.New("one or more tags invalid")
	ErrNoChanges       = errors.New("no changes detected")
)
