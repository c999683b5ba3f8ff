package logger

import "errors"

var (
	// ErrServiceNameIsEmpty error if the log config has no service name set.
	ErrServiceNameIsEmpty = errors.New("log config servicename can not be empty")

	// ErrAppNameIsEmpty error if the log config has no app name set.
	ErrAppNameIsEmpty = errors.New("log config appname can not be empty")
)
