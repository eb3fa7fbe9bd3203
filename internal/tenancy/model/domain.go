package model

import (
	"time"

	"github.com/google/uuid"
)

// DomainStatus is the verification state of a custom domain.
type DomainStatus string

const (
	StatusPending  DomainStatus = "PENDING"
	StatusVerified DomainStatus = "VERIFIED"
	StatusFailed   DomainStatus = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s DomainStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusFailed:
		return true
	}
	return false
}

// Domain is a custom hostname claimed by a workspace.
type Domain struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	WorkspaceID uuid.UUID    `json:"workspace_id"`
	Status      DomainStatus `json:"status"`
	// VerificationToken is published by the owner as a TXT record when the
	// domain cannot carry a CNAME.
	VerificationToken string     `json:"verification_token,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastCheckedAt     *time.Time `json:"last_checked_at,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
}

// DNSInstructions tells the owner which records make a domain verifiable.
type DNSInstructions struct {
	CNAMEHost   string `json:"cname_host"`
	CNAMETarget string `json:"cname_target"`
	TXTHost     string `json:"txt_host"`
	TXTValue    string `json:"txt_value"`
}
