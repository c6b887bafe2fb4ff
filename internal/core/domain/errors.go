package domain

import (
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx answer from an OGC API endpoint.
type HTTPError struct {
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	text := e.StatusText
	if text == "" {
		text = http.StatusText(e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, text)
}

// DecodeError means a payload did not have the shape expected for its format.
type DecodeError struct {
	Format FetchFormat
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s: %s", e.Format, e.Reason)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NetworkError means the request could not be sent or its body not read.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
