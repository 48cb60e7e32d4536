package service

import "errors"

var (
	// ErrNotFound is returned when an image id is in neither pool.
	ErrNotFound = errors.New("image not found")
	// ErrUnknownCollection is returned for collection ids other than feed and favorites.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrSuperseded is returned when a newer search started before this one finished.
	ErrSuperseded = errors.New("search superseded by a newer request")
	// ErrDisposed is returned by a rotation scheduler after Dispose.
	ErrDisposed = errors.New("rotation scheduler disposed")
)
