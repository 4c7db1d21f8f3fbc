package client

import "github.com/rackstat/rackstat/internal/store"

// Wire shapes match the server's request/response payloads.

type toggleRequest struct {
	ComputerID string `json:"computer_id"`
}

type bulkRequest struct {
	Status string `json:"status"`
}

type notesRequest struct {
	ComputerID string  `json:"computer_id"`
	Notes      *string `json:"notes"`
}

type bulkResponse struct {
	Status  store.Status `json:"status"`
	Updated int          `json:"updated_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
