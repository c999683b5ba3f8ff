package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.url is empty.
	ErrEmptyURL = errors.New("config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("config webserver.port listening port can not be 0")

	// ErrEmptySigningKey error if config jwt.signingkey is empty.
	ErrEmptySigningKey = errors.New("config jwt.signingkey can not be empty")

	// ErrBadMFAKeyLength error if config mfa.encryptionkey is not 32 bytes.
	ErrBadMFAKeyLength = errors.New("config mfa.encryptionkey must be exactly 32 bytes")

	// ErrEmptyRedisAddr error if config redis.addr is empty.
	ErrEmptyRedisAddr = errors.New("config redis.addr can not be empty")
)
