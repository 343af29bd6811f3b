package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/AnTengye/auctionhub/backend/model"
	"github.com/AnTengye/auctionhub/backend/pkg/logger"
)

// RowOutcome classifies a parsed row.
type RowOutcome int

const (
	OutcomeValid RowOutcome = iota
	OutcomeSkipped
	OutcomeInvalid
)

const skippedType = "others"

// requiredFields are checked in this order; the first missing one is reported.
var requiredFields = []string{FieldType, FieldLocation, FieldState, FieldReservePrice, FieldAuctionDate}

var (
	amountPrefixes = []string{"inr", "rs.", "rs", "₹", "$"}
	leadingNumber  = regexp.MustCompile(`^\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	tenPercent     = decimal.NewFromInt(10)
)

type remoteFetcher interface {
	Fetch(ctx context.Context, rawURL string) []byte
}

type imageNormalizer interface {
	Normalize(ctx context.Context, data []byte, suggestedName, placeholder string) string
}

// RowParser validates one raw row and resolves its images and name.
type RowParser struct {
	fetcher remoteFetcher
	images  imageNormalizer
	namer   *NameResolver
}

func NewRowParser(fetcher remoteFetcher, images imageNormalizer, namer *NameResolver) *RowParser {
	return &RowParser{fetcher: fetcher, images: images, namer: namer}
}

// Parse returns the property for a valid row. Skipped rows return neither a
// property nor an error message; invalid rows return only the message.
func (p *RowParser) Parse(ctx context.Context, rowNum int, raw model.RawRecord, index ArchiveIndex, placeholder string) (*model.Property, RowOutcome, string) {
	propertyType := lookupField(raw, FieldType)
	if strings.EqualFold(propertyType, skippedType) {
		return nil, OutcomeSkipped, ""
	}

	values := map[string]string{
		FieldType:         propertyType,
		FieldLocation:     resolveLocation(raw),
		FieldState:        lookupField(raw, FieldState),
		FieldReservePrice: lookupField(raw, FieldReservePrice),
		FieldAuctionDate:  lookupField(raw, FieldAuctionDate),
	}
	for _, field := range requiredFields {
		if values[field] == "" {
			return nil, OutcomeInvalid, fmt.Sprintf("Row %d: Missing required field - %s", rowNum, field)
		}
	}

	// Money is kept to the paisa; a price that rounds to zero is not a price.
	reservePrice, ok := parseAmount(values[FieldReservePrice])
	reservePrice = reservePrice.Round(2)
	if !ok || !reservePrice.IsPositive() {
		return nil, OutcomeInvalid, fmt.Sprintf("Row %d: Invalid reserve price - %s", rowNum, values[FieldReservePrice])
	}

	// Rounding up keeps the derived deposit positive for prices below 0.05.
	emd, ok := parseAmount(lookupField(raw, FieldEMD))
	emd = emd.Round(2)
	if !ok || !emd.IsPositive() {
		emd = reservePrice.Div(tenPercent).RoundCeil(2)
	}

	prop := &model.Property{
		ID:              lookupField(raw, FieldID),
		Type:            propertyType,
		Category:        lookupField(raw, FieldCategory),
		Location:        values[FieldLocation],
		Town:            lookupField(raw, FieldTown),
		City:            lookupField(raw, FieldCity),
		NearestBranch:   lookupField(raw, FieldNearestBranch),
		State:           values[FieldState],
		Address:         lookupField(raw, FieldAddress),
		ReservePrice:    reservePrice,
		EMD:             emd,
		Area:            parseArea(lookupField(raw, FieldArea)),
		AuctionDate:     values[FieldAuctionDate],
		PublicationDate: lookupField(raw, FieldPublicationDate),
		ApplicationDate: lookupField(raw, FieldApplicationDate),
		BorrowerName:    lookupField(raw, FieldBorrowerName),
		AgentContact:    lookupField(raw, FieldAgentContact),
		Description:     lookupField(raw, FieldDescription),
		Note:            lookupField(raw, FieldNote),
		Status:          model.StatusActive,
	}
	if prop.ID == "" {
		prop.ID = derivePropertyID(prop)
	}

	prop.Images = p.resolveImages(ctx, rowNum, lookupField(raw, FieldImages), index, placeholder)
	if len(prop.Images) == 0 {
		prop.Images = []string{placeholder}
	}

	prop.Name = p.namer.Resolve(ctx, lookupField(raw, FieldName), prop.Description, prop.Type, prop.Location)
	return prop, OutcomeValid, ""
}

func resolveLocation(raw model.RawRecord) string {
	if loc := lookupField(raw, FieldLocation); loc != "" {
		return loc
	}
	var parts []string
	for _, field := range []string{FieldTown, FieldCity, FieldNearestBranch} {
		if v := lookupField(raw, field); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// parseAmount accepts values like "₹ 12,50,000", "Rs. 1,000.50" or "5000/-".
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	for _, prefix := range amountPrefixes {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = s[len(prefix):]
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "/-")
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseArea reads the leading number of values like "1,200 sq ft". Anything
// else leaves the area unset.
func parseArea(s string) *decimal.Decimal {
	m := leadingNumber.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || !d.IsPositive() {
		return nil
	}
	return &d
}

// derivePropertyID makes id-less rows stable across re-submissions so the
// store can still report them as duplicates.
func derivePropertyID(p *model.Property) string {
	key := strings.Join([]string{
		strings.ToLower(p.Type),
		strings.ToLower(p.Location),
		strings.ToLower(p.State),
		p.ReservePrice.String(),
		p.AuctionDate,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return "P-" + hex.EncodeToString(sum[:])[:16]
}

func splitImageTokens(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n'
	})
	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

func isRemoteImage(token string) bool {
	u, err := url.Parse(token)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// resolveImages drops tokens that cannot be found or fetched. A token whose
// bytes fail to normalize contributes the placeholder, at most once.
func (p *RowParser) resolveImages(ctx context.Context, rowNum int, column string, index ArchiveIndex, placeholder string) []string {
	var refs []string
	placeholderUsed := false
	for _, token := range splitImageTokens(column) {
		var data []byte
		if isRemoteImage(token) {
			data = p.fetcher.Fetch(ctx, token)
		} else {
			data, _ = index.Lookup(token)
		}
		if data == nil {
			logger.Debug(ctx, "image not resolved", "row", rowNum, "image", token)
			continue
		}
		ref := p.images.Normalize(ctx, data, token, placeholder)
		if ref == placeholder {
			if placeholderUsed {
				continue
			}
			placeholderUsed = true
		}
		refs = append(refs, ref)
	}
	return refs
}
