// Package dto contains request and response shapes of the HTTP API.
package dto

// ListResponse wraps a collection response.
type ListResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}
