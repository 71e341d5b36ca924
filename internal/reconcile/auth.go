package reconcile

import (
	"fmt"
	"strings"
)

const anyTrip = "*"

// StaticAuthorizer maps bearer tokens to the trips they may write.
type StaticAuthorizer map[string]map[string]bool

// ParseTokens reads "token=trip-1|trip-2,other=*". A "*" grants every trip.
func ParseTokens(list string) (StaticAuthorizer, error) {
	auth := make(StaticAuthorizer)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, trips, ok := strings.Cut(entry, "=")
		token = strings.TrimSpace(token)
		if !ok || token == "" || strings.TrimSpace(trips) == "" {
			return nil, fmt.Errorf("invalid token entry %q, want token=trip[|trip...]", entry)
		}
		allowed := auth[token]
		if allowed == nil {
			allowed = make(map[string]bool)
			auth[token] = allowed
		}
		for _, trip := range strings.Split(trips, "|") {
			if trip = strings.TrimSpace(trip); trip != "" {
				allowed[trip] = true
			}
		}
	}
	return auth, nil
}

func (a StaticAuthorizer) Authorize(token, tripID string) error {
	allowed, ok := a[token]
	if token == "" || !ok {
		return ErrUnauthorized
	}
	if !allowed[anyTrip] && !allowed[tripID] {
		return ErrForbidden
	}
	return nil
}
