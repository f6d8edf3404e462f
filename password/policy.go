package password

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// DefaultSpecials is the special-character set required by DefaultPolicy.
const DefaultSpecials = "@#$%^&+=!?"

// ErrPolicy is returned by Policy.Validate for a password that breaks the policy.
var ErrPolicy = errors.New("password policy violation")

var (
	upperRe      = regexp.MustCompile(`\p{Lu}`)
	lowerRe      = regexp.MustCompile(`\p{Ll}`)
	digitRe      = regexp.MustCompile(`[0-9]`)
	noWhitespace = regexp.MustCompile(`^\S*$`)
)

// Policy describes the composition rules for new passwords.
type Policy struct {
	MinLength      int    `yaml:"min_length"`
	MaxLength      int    `yaml:"max_length"`
	RequireUpper   bool   `yaml:"require_upper"`
	RequireLower   bool   `yaml:"require_lower"`
	RequireDigit   bool   `yaml:"require_digit"`
	RequireSpecial bool   `yaml:"require_special"`
	Specials       string `yaml:"specials"`
}

// DefaultPolicy is 8-50 characters with at least one upper, lower, digit and
// special character, and no whitespace.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		MaxLength:      50,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
		Specials:       DefaultSpecials,
	}
}

// Validate checks raw against the policy. Violations wrap ErrPolicy.
func (p Policy) Validate(raw string) error {
	rules := []validation.Rule{
		validation.Required.Error("password is required"),
		validation.RuneLength(p.MinLength, p.MaxLength).
			Error(fmt.Sprintf("password must be between %d and %d characters", p.MinLength, p.MaxLength)),
		validation.Match(noWhitespace).Error("password must not contain whitespace"),
	}
	if p.RequireUpper {
		rules = append(rules, validation.Match(upperRe).Error("password must contain an uppercase letter"))
	}
	if p.RequireLower {
		rules = append(rules, validation.Match(lowerRe).Error("password must contain a lowercase letter"))
	}
	if p.RequireDigit {
		rules = append(rules, validation.Match(digitRe).Error("password must contain a digit"))
	}
	if p.RequireSpecial {
		specials := p.Specials
		if specials == "" {
			specials = DefaultSpecials
		}
		rules = append(rules, validation.By(func(v interface{}) error {
			if s, _ := v.(string); !strings.ContainsAny(s, specials) {
				return errors.New("password must contain one of " + specials)
			}
			return nil
		}))
	}

	if err := validation.Validate(raw, rules...); err != nil {
		return fmt.Errorf("%w: %v", ErrPolicy, err)
	}
	return nil
}
