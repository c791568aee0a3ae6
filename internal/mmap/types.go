package mmap

import "errors"

// AccessPattern hints how mapped bytes are about to be read.
type AccessPattern int

const (
	// AccessDefault leaves the kernel readahead policy unchanged.
	AccessDefault AccessPattern = iota
	// AccessSequential expects a single front-to-back pass.
	AccessSequential
	// AccessRandom expects scattered reads and disables readahead.
	AccessRandom
)

var (
	// ErrClosed reports use of a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize reports a file that cannot be mapped on this platform.
	ErrInvalidSize = errors.New("mmap: invalid file size")
)
