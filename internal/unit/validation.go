package unit

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	maxNameLength   = 100
	maxSlugLength   = 50
	maxHostLength   = 253
	maxCapabilities = 16
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	validGenerations  = setOf(AllGenerations())
	validCapabilities = setOf(AllCapabilities())
)

func setOf[T comparable](values []T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// ValidateUnit checks every field of a unit and returns the first
// problem found. An empty slug passes; the registry generates one from
// the name at creation time.
func ValidateUnit(u *Unit) error {
	if u == nil {
		return ErrInvalidUnit
	}
	if err := ValidateName(u.Name); err != nil {
		return err
	}
	if u.Slug != "" {
		if err := ValidateSlug(u.Slug); err != nil {
			return err
		}
	}
	if err := ValidateHost(u.Host); err != nil {
		return err
	}
	if err := ValidateGeneration(u.Generation); err != nil {
		return err
	}
	if len(u.Capabilities) > 0 {
		return ValidateCapabilities(u.Capabilities)
	}
	return nil
}

// ValidateName rejects empty and oversized display names.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateSlug enforces the lowercase-hyphenated form slugs appear in
// across MQTT topics and URLs.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug cannot be empty", ErrInvalidSlug)
	}
	if len(slug) > maxSlugLength {
		return fmt.Errorf("%w: slug exceeds %d characters", ErrInvalidSlug, maxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("%w: slug must be lowercase alphanumeric with hyphens", ErrInvalidSlug)
	}
	return nil
}

// ValidateHost checks if a host value is a plausible hostname or IP,
// with an optional port. The bridge owns actual reachability.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidHost)
	}
	if len(host) > maxHostLength {
		return fmt.Errorf("%w: host exceeds %d characters", ErrInvalidHost, maxHostLength)
	}
	if strings.ContainsAny(host, " \t/") {
		return fmt.Errorf("%w: host contains invalid characters", ErrInvalidHost)
	}
	if h, _, err := net.SplitHostPort(host); err == nil && h == "" {
		return fmt.Errorf("%w: host part cannot be empty", ErrInvalidHost)
	}
	return nil
}

// ValidateGeneration rejects firmware families the bridges do not speak.
func ValidateGeneration(g Generation) error {
	if _, ok := validGenerations[g]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidGeneration, g)
	}
	return nil
}

// ValidateCapabilities rejects unknown capability names and absurd
// capability counts.
func ValidateCapabilities(caps []Capability) error {
	if len(caps) > maxCapabilities {
		return fmt.Errorf("%w: too many capabilities (max %d)", ErrInvalidCapability, maxCapabilities)
	}
	for _, c := range caps {
		if _, ok := validCapabilities[c]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidCapability, c)
		}
	}
	return nil
}

// GenerateSlug derives a slug from a display name: lowercase, drop
// anything that is not alphanumeric or a separator, then join the
// remaining runs with single hyphens. "Living Room A/C" becomes
// "living-room-ac".
func GenerateSlug(name string) string {
	lowered := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '_', r == '-':
			return ' '
		default:
			return -1
		}
	}, name)

	slug := strings.Join(strings.Fields(lowered), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// GenerateID creates a new UUID for a unit.
func GenerateID() string {
	return uuid.New().String()
}
