package engine

import "errors"

var (
	// ErrUnavailable is returned when the engine has not been created and the
	// caller asked not to create it.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrDuplicate is returned by Add when the torrent is already present.
	ErrDuplicate = errors.New("torrent already added")
	// ErrInvalidDescriptor is returned when a descriptor cannot be decoded.
	ErrInvalidDescriptor = errors.New("invalid torrent descriptor")
	// ErrNoMetadata is returned for operations that need torrent info before
	// the engine has it.
	ErrNoMetadata = errors.New("torrent metadata not available")
	// ErrInvalidHandle is returned for operations on a removed torrent.
	ErrInvalidHandle = errors.New("torrent handle no longer valid")
)
