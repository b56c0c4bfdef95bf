package controllers

import (
	"github.com/hyperrixel/logos/internal/ingest"
	"github.com/hyperrixel/logos/internal/wire"
)

// Common request/response types for HTTP controllers

// submitResp is the body of a successful submission: the receipt with
// the assigned identifier and commit time.
type submitResp struct {
	ingest.Receipt
}

// rangeResp lists authorized entries in commit order, with the resume
// cursor for the next page ("" when exhausted).
type rangeResp struct {
	Entries []wire.Envelope `json:"entries"`
	Next    string          `json:"next,omitempty"`
}

// blobRegisterReq registers attachment metadata ahead of submission.
type blobRegisterReq struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// heartbeatResp reports the presence state after a heartbeat.
type heartbeatResp struct {
	PrincipalID string `json:"principalId"`
	State       string `json:"state"`
}
