package blog

import "errors"

var (
	// ErrNoMorePages is returned by LoadMore when the listing has no cursor.
	ErrNoMorePages = errors.New("no more pages")
	// ErrLoadInProgress is returned by LoadMore while another load is running.
	ErrLoadInProgress = errors.New("load already in progress")
)
