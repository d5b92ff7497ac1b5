package service

import "errors"

// ErrCaseNotFound is returned when the target case id does not exist
var ErrCaseNotFound = errors.New("case not found")
