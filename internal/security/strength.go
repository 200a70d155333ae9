package security

import (
	"fmt"
	"strings"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

type PasswordRule interface {
	Validate(password string, userInputs []string) error
}

type PasswordRuleFunc func(password string, userInputs []string) error

func (f PasswordRuleFunc) Validate(password string, userInputs []string) error {
	return f(password, userInputs)
}

// PasswordValidator runs rules in order and stops at the first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// DefaultAdminPasswordValidator is applied to every provisioned admin account.
func DefaultAdminPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(12),
		StrengthRule(3),
	)
}

// Validate checks password; userInputs (email, name) are penalized when
// they show up inside the password.
func (v *PasswordValidator) Validate(password string, userInputs ...string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password, userInputs); err != nil {
			return err
		}
	}
	return nil
}

func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// StrengthRule rejects passwords whose zxcvbn score (0-4) is below min.
func StrengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string, userInputs []string) error {
		inputs := make([]string, 0, len(userInputs)*2)
		for _, in := range userInputs {
			in = strings.TrimSpace(in)
			if in == "" {
				continue
			}
			inputs = append(inputs, in)
			if local, _, ok := strings.Cut(in, "@"); ok && local != "" {
				inputs = append(inputs, local)
			}
		}

		result := zxcvbn.PasswordStrength(password, inputs)
		if result.Score < min {
			return &PasswordValidationError{
				Code:    "weak_password",
				Message: fmt.Sprintf("password is too guessable (score %d, need %d)", result.Score, min),
			}
		}
		return nil
	})
}
