package config

import "errors"

var (
	// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL
	ErrInvalidBaseURL = errors.New("base_url must be an absolute http or https URL")
	// ErrEmptyCatalogMarker is returned when no catalog path marker is configured
	ErrEmptyCatalogMarker = errors.New("catalog_marker cannot be empty")
	// ErrInvalidTimeout is returned when a request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout and image_timeout must be greater than 0")
	// ErrNegativeDelay is returned when a pacing delay is negative
	ErrNegativeDelay = errors.New("item_delay, page_delay and request_delay cannot be negative")
	// ErrInvalidMaxPages is returned when max_pages is negative
	ErrInvalidMaxPages = errors.New("max_pages cannot be negative")
	// ErrEmptyOutputPath is returned when the output directory or file name is empty
	ErrEmptyOutputPath = errors.New("output_dir and output_name cannot be empty")
	// ErrEmptyImageDir is returned when images are downloaded without an image directory
	ErrEmptyImageDir = errors.New("image_dir cannot be empty when download_images is set")
	// ErrUnknownFormat is returned for an output format other than csv, json or markdown
	ErrUnknownFormat = errors.New("formats may only contain csv, json or markdown")
)
