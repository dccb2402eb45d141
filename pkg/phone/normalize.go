package phone

import (
	"fmt"
	"strings"

	"Investa/pkg/errors"
)

// ErrorKind 校验失败的类别
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindEmpty              ErrorKind = "empty"
	KindTooShort           ErrorKind = "too_short"
	KindTooLong            ErrorKind = "too_long"
	KindInvalidFormat      ErrorKind = "invalid_format"
	KindUnsupportedCountry ErrorKind = "unsupported_country"
)

// Result 是 Normalize 的输出
type Result struct {
	Valid     bool      `json:"valid"`
	Canonical string    `json:"canonical,omitempty"`
	Display   string    `json:"display,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Normalize 把用户输入转换成 "+国家码+本地号码" 的规范形式。
//
// 长度错误总是先于格式错误返回，输入过程中号码还不够长时只会得到 too_short，
// 不会提前报格式错误。
func Normalize(raw, countryCode string) Result {
	rule, ok := Lookup(countryCode)
	if !ok {
		return Result{
			ErrorKind: KindUnsupportedCountry,
			Message:   fmt.Sprintf("Phone numbers from %q are not supported yet", countryCode),
		}
	}

	digits := digitsOnly(raw)
	if digits == "" {
		return Result{ErrorKind: KindEmpty, Message: "Please enter your phone number"}
	}

	if rule.StripLeadingZero {
		digits = strings.TrimLeft(digits, "0")
	}

	// 用户连同国家码一起输入时去掉前缀；只有去掉后仍然够长才算前缀，
	// 否则像 GH 的 233xxxxxx 这种本地号码会被误伤
	cc := rule.callingDigits()
	if strings.HasPrefix(digits, cc) && len(digits)-len(cc) >= rule.MinLength {
		digits = digits[len(cc):]
		if rule.StripLeadingZero {
			digits = strings.TrimLeft(digits, "0")
		}
	}

	switch {
	case len(digits) < rule.MinLength:
		return Result{
			ErrorKind: KindTooShort,
			Message:   fmt.Sprintf("%s numbers need at least %d digits", rule.Name, rule.MinLength),
		}
	case len(digits) > rule.MaxLength:
		return Result{
			ErrorKind: KindTooLong,
			Message:   fmt.Sprintf("%s numbers have at most %d digits", rule.Name, rule.MaxLength),
		}
	}

	if !rule.re.MatchString(digits) {
		return Result{
			ErrorKind: KindInvalidFormat,
			Message:   fmt.Sprintf("%s, e.g. %s%s", rule.FormatHint, rule.CallingCode, rule.Example),
		}
	}

	canonical := rule.CallingCode + digits
	return Result{Valid: true, Canonical: canonical, Display: Display(canonical)}
}

// Validate 供服务层使用，失败时返回带具体提示的 PhoneInvalid / UnsupportedCountry
func Validate(raw, countryCode string) (string, error) {
	res := Normalize(raw, countryCode)
	if res.Valid {
		return res.Canonical, nil
	}
	if res.ErrorKind == KindUnsupportedCountry {
		return "", errors.UnsupportedCountry.WithMessage(res.Message)
	}
	return "", errors.PhoneInvalid.WithMessage(res.Message)
}

func digitsOnly(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
