package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// ThirdPartyService identifies one of the external dependencies workers call.
// The set is closed: free-form strings never reach the store, so a typo can
// not create orphan circuit state.
type ThirdPartyService string

const (
	ServiceApollo          ThirdPartyService = "apollo"          // lead search / fetch
	ServiceMillionVerifier ThirdPartyService = "millionverifier" // email verification
	ServicePerplexity      ThirdPartyService = "perplexity"      // AI lead enrichment
	ServiceOpenAI          ThirdPartyService = "openai"          // AI copy generation
	ServiceInstantly       ThirdPartyService = "instantly"       // outreach upload
)

// AllServices returns every known third-party service in a stable order.
func AllServices() []ThirdPartyService {
	return []ThirdPartyService{
		ServiceApollo,
		ServiceMillionVerifier,
		ServicePerplexity,
		ServiceOpenAI,
		ServiceInstantly,
	}
}

// ParseService converts a user-supplied name into a ThirdPartyService.
// Matching is case-insensitive.
func ParseService(name string) (ThirdPartyService, error) {
	s := ThirdPartyService(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllServices() {
		if s == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("invalid service name: %q (valid services: %s)", name, strings.Join(ServiceNames(), ", "))
}

// ServiceNames returns the valid service names as strings, for error messages
// and API responses.
func ServiceNames() []string {
	all := AllServices()
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, string(s))
	}
	return names
}

func (s ThirdPartyService) String() string {
	return string(s)
}

// Scan implements sql.Scanner so the enum can be stored in job rows.
func (s *ThirdPartyService) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = ThirdPartyService(v)
	case []byte:
		*s = ThirdPartyService(v)
	default:
		return fmt.Errorf("cannot scan %T into ThirdPartyService", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (s ThirdPartyService) Value() (driver.Value, error) {
	return string(s), nil
}
