package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Investa/internal/model"
	"Investa/pkg/errors"
	"Investa/pkg/metrics"
	"Investa/pkg/phone"
	"Investa/utils"
)

const minInvestorAge = 18

// ValidateProfile 提交前的本地校验，返回去掉空白并规范化手机号后的资料
func ValidateProfile(ctx context.Context, p model.ProfileData, now time.Time) (model.ProfileData, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.DateOfBirth = strings.TrimSpace(p.DateOfBirth)
	p.Nationality = strings.ToUpper(strings.TrimSpace(p.Nationality))
	p.CountryCode = strings.ToUpper(strings.TrimSpace(p.CountryCode))
	p.Address = strings.TrimSpace(p.Address)
	p.City = strings.TrimSpace(p.City)
	p.Occupation = strings.TrimSpace(p.Occupation)
	p.SourceOfFunds = strings.TrimSpace(p.SourceOfFunds)
	p.InvestmentExperience = strings.ToLower(strings.TrimSpace(p.InvestmentExperience))
	p.RiskTolerance = strings.ToLower(strings.TrimSpace(p.RiskTolerance))

	required := []struct{ name, value string }{
		{"full name", p.FullName},
		{"date of birth", p.DateOfBirth},
		{"nationality", p.Nationality},
		{"address", p.Address},
		{"occupation", p.Occupation},
		{"source of funds", p.SourceOfFunds},
		{"investment experience", p.InvestmentExperience},
		{"risk tolerance", p.RiskTolerance},
	}
	for _, f := range required {
		if f.value == "" {
			return p, errors.ProfileInvalid.WithMessage(fmt.Sprintf("Please enter your %s", f.name))
		}
	}

	dob, err := utils.ParseDate(p.DateOfBirth)
	if err != nil {
		return p, errors.ProfileInvalid.WithMessage("Date of birth must look like 1990-01-31")
	}
	if dob.After(now) {
		return p, errors.ProfileInvalid.WithMessage("Date of birth cannot be in the future")
	}
	if utils.YearsBetween(dob, now) < minInvestorAge {
		return p, errors.ProfileInvalid.WithMessage(fmt.Sprintf("You must be at least %d years old to invest", minInvestorAge))
	}

	canonical, err := phone.Validate(p.Phone, p.CountryCode)
	metrics.GetMetrics().RecordPhoneValidation(ctx, p.CountryCode, phoneOutcome(err))
	if err != nil {
		return p, err
	}
	p.Phone = canonical

	return p, nil
}

func phoneOutcome(err error) string {
	if err == nil {
		return "valid"
	}
	if def, ok := errors.As(err); ok {
		return strings.ToLower(def.Code)
	}
	return "invalid"
}
