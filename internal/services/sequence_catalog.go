package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sprintdeck/estimation/internal/models"
)

const (
	// Wildcard is the "unable to estimate" card. It is always the last card
	// of a sequence and never participates in numeric averaging.
	Wildcard = "?"

	// MaxCustomValues limits the number of custom card values
	MaxCustomValues = 20
	// MaxValueLength limits individual value length
	MaxValueLength = 10
)

// Preset sequences as comma-separated strings (single source of truth,
// reused by forms and docs).
const (
	FibonacciValues   = "0, 1, 2, 3, 5, 8, 13, 21"
	TShirtValues      = "XS, S, M, L, XL, XXL"
	PowersOfTwoValues = "1, 2, 4, 8, 16, 32, 64"
)

var valuePattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_ ]+$`)

// SequenceCatalog resolves estimation methods to their legal card sequences
// and provides validation and numeric parsing for card values.
type SequenceCatalog struct{}

func NewSequenceCatalog() *SequenceCatalog {
	return &SequenceCatalog{}
}

// SequenceFor returns the card sequence for a method. customValues is only
// consulted for MethodCustom. Every returned sequence ends with the wildcard.
func (c *SequenceCatalog) SequenceFor(method models.EstimationMethod, customValues []string) ([]string, error) {
	switch method {
	case models.MethodFibonacci:
		return c.withWildcard(c.mustParse(FibonacciValues)), nil
	case models.MethodTShirt:
		return c.withWildcard(c.mustParse(TShirtValues)), nil
	case models.MethodPowersOfTwo:
		return c.withWildcard(c.mustParse(PowersOfTwoValues)), nil
	case models.MethodCustom:
		if len(customValues) == 0 {
			return nil, models.NewFieldError(models.KindInvalidArgument, "customValues", "custom method requires card values")
		}
		seq, err := c.ValidateCustomSequence(customValues)
		if err != nil {
			return nil, err
		}
		return c.withWildcard(seq), nil
	default:
		return nil, models.NewFieldError(models.KindInvalidMethod, "method", "unknown estimation method: "+string(method))
	}
}

// Methods lists the supported estimation methods.
func (c *SequenceCatalog) Methods() []models.EstimationMethod {
	return []models.EstimationMethod{
		models.MethodFibonacci,
		models.MethodTShirt,
		models.MethodPowersOfTwo,
		models.MethodCustom,
	}
}

// ParseCustomValues parses comma-separated card values with validation.
// Input: "XS, S, M, L, XL" or "0.5, 1, 2, 3, 5, 8"
func (c *SequenceCatalog) ParseCustomValues(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, models.NewFieldError(models.KindInvalidArgument, "customValues", "custom values cannot be empty")
	}

	var values []string
	for _, part := range strings.Split(input, ",") {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		values = append(values, value)
	}

	return c.ValidateCustomSequence(values)
}

// ValidateCustomSequence validates an already-split list of card values.
// The wildcard may appear at most once and only as the last value.
func (c *SequenceCatalog) ValidateCustomSequence(values []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for i, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if value == Wildcard {
			if i != len(values)-1 {
				return nil, models.NewFieldError(models.KindInvalidArgument, "customValues", "wildcard must be the last value")
			}
			continue // appended by withWildcard
		}
		if err := c.ValidateValue(value); err != nil {
			return nil, err
		}
		if seen[value] {
			return nil, models.NewFieldError(models.KindInvalidArgument, "customValues", "duplicate value: '"+value+"'")
		}
		seen[value] = true
		out = append(out, value)
	}

	if len(out) < 2 {
		return nil, models.NewFieldError(models.KindInvalidArgument, "customValues", "at least 2 values are required")
	}
	if len(out) > MaxCustomValues {
		return nil, models.NewFieldError(models.KindInvalidArgument, "customValues", "too many values (max "+strconv.Itoa(MaxCustomValues)+")")
	}

	return out, nil
}

// ValidateValue validates a single card value.
func (c *SequenceCatalog) ValidateValue(value string) error {
	if value == "" {
		return models.NewFieldError(models.KindInvalidArgument, "value", "value cannot be empty")
	}
	if len(value) > MaxValueLength {
		return models.NewFieldError(models.KindInvalidArgument, "value", "value too long (max "+strconv.Itoa(MaxValueLength)+" characters)")
	}
	// Allow alphanumeric, dots, hyphens, underscores, and spaces. Supports
	// numbers (1, 2, 3), floats (0.5, 1.5) and t-shirt sizes (XS, S, M).
	if !valuePattern.MatchString(value) {
		return models.NewFieldError(models.KindInvalidArgument, "value", "contains invalid characters")
	}
	for _, r := range value {
		if r < 32 || r == 127 {
			return models.NewFieldError(models.KindInvalidArgument, "value", "contains control characters")
		}
	}
	return nil
}

// ParseNumericValue attempts to parse a card value as a number.
// Returns the float value and true if successful, 0 and false otherwise.
func (c *SequenceCatalog) ParseNumericValue(value string) (float64, bool) {
	if value == Wildcard {
		return 0, false
	}
	if num, err := strconv.ParseFloat(value, 64); err == nil {
		if num >= 0 && num <= 1000 {
			return num, true
		}
	}
	return 0, false
}

// IsWildcard reports whether value is the wildcard card.
func (c *SequenceCatalog) IsWildcard(value string) bool {
	return value == Wildcard
}

func (c *SequenceCatalog) withWildcard(seq []string) []string {
	return append(seq, Wildcard)
}

// mustParse splits a preset string. Presets are compile-time constants, so a
// parse failure is a programming error.
func (c *SequenceCatalog) mustParse(input string) []string {
	var values []string
	for _, part := range strings.Split(input, ",") {
		values = append(values, strings.TrimSpace(part))
	}
	return values
}
