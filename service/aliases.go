package service

import (
	"strings"
	"unicode"

	"github.com/AnTengye/auctionhub/backend/model"
)

// Logical fields a property row can carry.
const (
	FieldID              = "id"
	FieldName            = "name"
	FieldType            = "type"
	FieldCategory        = "category"
	FieldLocation        = "location"
	FieldTown            = "town"
	FieldCity            = "city"
	FieldNearestBranch   = "nearestBranch"
	FieldState           = "state"
	FieldAddress         = "address"
	FieldReservePrice    = "reservePrice"
	FieldEMD             = "emd"
	FieldArea            = "area"
	FieldAuctionDate     = "auctionDate"
	FieldPublicationDate = "publicationDate"
	FieldApplicationDate = "applicationDate"
	FieldBorrowerName    = "borrowerName"
	FieldAgentContact    = "agentContact"
	FieldDescription     = "description"
	FieldNote            = "note"
	FieldImages          = "images"
)

// fieldAliases lists accepted header spellings per logical field, in priority
// order. Headers are compared after NormalizeHeader, so case, spaces,
// underscores and punctuation do not matter. New spellings go here.
var fieldAliases = map[string][]string{
	FieldID:              {"id", "property id", "auction id", "listing id", "ref no", "reference"},
	FieldName:            {"name", "property name", "title", "listing name"},
	FieldType:            {"type", "property type", "asset type"},
	FieldCategory:        {"category", "property category", "asset category"},
	FieldLocation:        {"location", "property location"},
	FieldTown:            {"area/town", "town", "locality", "area town"},
	FieldCity:            {"city", "district"},
	FieldNearestBranch:   {"nearest branch", "branch", "branch name"},
	FieldState:           {"state", "province"},
	FieldAddress:         {"address", "property address", "full address"},
	FieldReservePrice:    {"reserve price", "reserve price (rs)", "reserve price rs", "reserveprice", "price", "base price"},
	FieldEMD:             {"emd", "emd amount", "earnest money", "earnest money deposit"},
	FieldArea:            {"area", "area (sq ft)", "area sqft", "area sq ft", "carpet area", "built up area", "size"},
	FieldAuctionDate:     {"auction date", "date of auction", "e-auction date", "auction date & time"},
	FieldPublicationDate: {"publication date", "date of publication", "notice date"},
	FieldApplicationDate: {"application date", "last date of application", "emd submission date", "last date"},
	FieldBorrowerName:    {"borrower name", "borrower", "name of borrower"},
	FieldAgentContact:    {"agent contact", "contact", "contact number", "agent phone", "contact details"},
	FieldDescription:     {"description", "property description", "details"},
	FieldNote:            {"note", "notes", "remarks"},
	FieldImages:          {"images", "image", "photos", "image urls", "image files", "pictures"},
}

var normalizedAliases = func() map[string][]string {
	out := make(map[string][]string, len(fieldAliases))
	for field, aliases := range fieldAliases {
		keys := make([]string, 0, len(aliases))
		for _, alias := range aliases {
			keys = append(keys, NormalizeHeader(alias))
		}
		out[field] = keys
	}
	return out
}()

// NormalizeHeader lower-cases a column name and drops everything that is not
// a letter or digit.
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lookupField returns the first non-empty value among the field's aliases.
func lookupField(raw model.RawRecord, field string) string {
	for _, key := range normalizedAliases[field] {
		if v := strings.TrimSpace(raw[key]); v != "" {
			return v
		}
	}
	return ""
}
