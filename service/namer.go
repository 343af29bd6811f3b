package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AnTengye/auctionhub/backend/pkg/logger"
)

const (
	maxPromptDescription = 400
	maxGeneratedName     = 120
)

// NameResolver picks a listing title: explicit name, then a generated one,
// then "{type} in {location}".
type NameResolver struct {
	naming  NamingService
	timeout time.Duration
}

func NewNameResolver(naming NamingService, timeout time.Duration) *NameResolver {
	return &NameResolver{naming: naming, timeout: timeout}
}

// Resolve never fails; every error path ends in the fallback title.
func (r *NameResolver) Resolve(ctx context.Context, explicit, description, propertyType, location string) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return explicit
	}
	fallback := fmt.Sprintf("%s in %s", propertyType, location)
	if r == nil || r.naming == nil {
		return fallback
	}

	genCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	generated, err := r.naming.Generate(genCtx, buildNamingPrompt(description, propertyType, location))
	if err != nil {
		logger.Debug(ctx, "name generation failed, using fallback", "error", err)
		return fallback
	}
	if name := cleanGeneratedName(generated); name != "" {
		return name
	}
	return fallback
}

func buildNamingPrompt(description, propertyType, location string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Property type: %s\n", propertyType)
	fmt.Fprintf(&b, "Location: %s\n", location)
	if d := strings.TrimSpace(description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncateRunes(d, maxPromptDescription))
	}
	b.WriteString("Write a concise listing title under 12 words.")
	return b.String()
}

// cleanGeneratedName keeps the first non-empty line without wrapping quotes.
func cleanGeneratedName(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'`“”")
		line = strings.TrimSpace(line)
		if line != "" {
			return truncateRunes(line, maxGeneratedName)
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
