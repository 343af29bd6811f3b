package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is one spreadsheet row keyed by normalized header name.
type RawRecord map[string]string

// Property is a validated, fully populated auction listing ready for persistence.
type Property struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Category        string           `json:"category,omitempty"`
	Location        string           `json:"location"`
	Town            string           `json:"town,omitempty"`
	City            string           `json:"city,omitempty"`
	NearestBranch   string           `json:"nearest_branch,omitempty"`
	State           string           `json:"state"`
	Address         string           `json:"address,omitempty"`
	ReservePrice    decimal.Decimal  `json:"reserve_price"`
	EMD             decimal.Decimal  `json:"emd"`
	Area            *decimal.Decimal `json:"area,omitempty"`
	AuctionDate     string           `json:"auction_date"`
	PublicationDate string           `json:"publication_date,omitempty"`
	ApplicationDate string           `json:"application_date,omitempty"`
	BorrowerName    string           `json:"borrower_name,omitempty"`
	AgentContact    string           `json:"agent_contact,omitempty"`
	Description     string           `json:"description,omitempty"`
	Note            string           `json:"note,omitempty"`
	Images          []string         `json:"images"`
	Status          string           `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PropertyStatus constants
const (
	StatusActive = "Active"
	StatusSold   = "Sold"
	StatusClosed = "Closed"
)

// ImportReport summarizes one bulk import run.
type ImportReport struct {
	PersistedCount int      `json:"persistedCount"`
	DuplicateCount int      `json:"duplicateCount"`
	FailedCount    int      `json:"failedCount"`
	Errors         []string `json:"errors"`
}
