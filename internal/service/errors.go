package service

import "errors"

var (
	ErrMissingURL          = errors.New("please provide a URL")
	ErrInvalidURL          = errors.New("please provide a valid URL with http/https")
	ErrUnauthorized        = errors.New("not authorized")
	ErrQuotaExceeded       = errors.New("url limit reached")
	ErrLinkNotFound        = errors.New("url not found")
	ErrLinkExpired         = errors.New("this URL has expired")
	ErrCodeCollision       = errors.New("short code already exists, please try again")
	ErrAllocationExhausted = errors.New("could not allocate a unique short code")
	ErrInvalidCodeLength   = errors.New("short code length out of range")
)
