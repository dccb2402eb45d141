package phone

import (
	"regexp"
	"sort"
	"strings"
)

// CountryPhoneRule 单个国家的号码规则，只在包初始化时构建一次
type CountryPhoneRule struct {
	CountryCode      string `json:"country_code"` // ISO 3166-1 alpha-2
	Name             string `json:"name"`
	CallingCode      string `json:"calling_code"` // 带 "+"
	MinLength        int    `json:"min_length"`   // 去掉国家码后的本地位数
	MaxLength        int    `json:"max_length"`
	Pattern          string `json:"pattern"`
	StripLeadingZero bool   `json:"strip_leading_zero"`
	FormatHint       string `json:"format_hint"`
	Example          string `json:"example"`

	re *regexp.Regexp
}

// callingDigits 是不带 "+" 的国家码
func (r CountryPhoneRule) callingDigits() string {
	return strings.TrimPrefix(r.CallingCode, "+")
}

var ruleTable = buildRuleTable([]CountryPhoneRule{
	{
		CountryCode: "KE", Name: "Kenya", CallingCode: "+254",
		MinLength: 9, MaxLength: 9, Pattern: `^(7\d|1[01])\d{7}$`, StripLeadingZero: true,
		FormatHint: "Kenyan mobile numbers have 9 digits and start with 7, 10 or 11",
		Example:    "712345678",
	},
	{
		CountryCode: "UG", Name: "Uganda", CallingCode: "+256",
		MinLength: 9, MaxLength: 9, Pattern: `^7\d{8}$`, StripLeadingZero: true,
		FormatHint: "Ugandan mobile numbers have 9 digits and start with 7",
		Example:    "772123456",
	},
	{
		CountryCode: "TZ", Name: "Tanzania", CallingCode: "+255",
		MinLength: 9, MaxLength: 9, Pattern: `^[67]\d{8}$`, StripLeadingZero: true,
		FormatHint: "Tanzanian mobile numbers have 9 digits and start with 6 or 7",
		Example:    "712345678",
	},
	{
		CountryCode: "RW", Name: "Rwanda", CallingCode: "+250",
		MinLength: 9, MaxLength: 9, Pattern: `^7[2389]\d{7}$`, StripLeadingZero: true,
		FormatHint: "Rwandan mobile numbers have 9 digits and start with 72, 73, 78 or 79",
		Example:    "788123456",
	},
	{
		CountryCode: "NG", Name: "Nigeria", CallingCode: "+234",
		MinLength: 10, MaxLength: 10, Pattern: `^[789][01]\d{8}$`, StripLeadingZero: true,
		FormatHint: "Nigerian mobile numbers have 10 digits and start with 70, 80, 81, 90 or 91",
		Example:    "8031234567",
	},
	{
		CountryCode: "GH", Name: "Ghana", CallingCode: "+233",
		MinLength: 9, MaxLength: 9, Pattern: `^[25]\d{8}$`, StripLeadingZero: true,
		FormatHint: "Ghanaian mobile numbers have 9 digits and start with 2 or 5",
		Example:    "241234567",
	},
	{
		CountryCode: "ZA", Name: "South Africa", CallingCode: "+27",
		MinLength: 9, MaxLength: 9, Pattern: `^[6-8]\d{8}$`, StripLeadingZero: true,
		FormatHint: "South African mobile numbers have 9 digits and start with 6, 7 or 8",
		Example:    "821234567",
	},
	{
		CountryCode: "ET", Name: "Ethiopia", CallingCode: "+251",
		MinLength: 9, MaxLength: 9, Pattern: `^[79]\d{8}$`, StripLeadingZero: true,
		FormatHint: "Ethiopian mobile numbers have 9 digits and start with 7 or 9",
		Example:    "911234567",
	},
	{
		CountryCode: "US", Name: "United States", CallingCode: "+1",
		MinLength: 10, MaxLength: 10, Pattern: `^[2-9]\d{2}[2-9]\d{6}$`, StripLeadingZero: false,
		FormatHint: "US numbers have a 3-digit area code and a 7-digit number, neither starting with 0 or 1",
		Example:    "2025550123",
	},
	{
		CountryCode: "GB", Name: "United Kingdom", CallingCode: "+44",
		MinLength: 10, MaxLength: 10, Pattern: `^7\d{9}$`, StripLeadingZero: true,
		FormatHint: "UK mobile numbers have 10 digits after the leading 0 and start with 7",
		Example:    "7400123456",
	},
	{
		CountryCode: "IN", Name: "India", CallingCode: "+91",
		MinLength: 10, MaxLength: 10, Pattern: `^[6-9]\d{9}$`, StripLeadingZero: true,
		FormatHint: "Indian mobile numbers have 10 digits and start with 6, 7, 8 or 9",
		Example:    "9812345678",
	},
	{
		CountryCode: "AE", Name: "United Arab Emirates", CallingCode: "+971",
		MinLength: 9, MaxLength: 9, Pattern: `^5[024568]\d{7}$`, StripLeadingZero: true,
		FormatHint: "UAE mobile numbers have 9 digits and start with 50, 52, 54, 55, 56 or 58",
		Example:    "501234567",
	},
})

func buildRuleTable(rules []CountryPhoneRule) map[string]CountryPhoneRule {
	table := make(map[string]CountryPhoneRule, len(rules))
	for _, r := range rules {
		r.re = regexp.MustCompile(r.Pattern)
		table[r.CountryCode] = r
	}
	return table
}

// Lookup 按国家码查询规则，大小写不敏感
func Lookup(countryCode string) (CountryPhoneRule, bool) {
	r, ok := ruleTable[strings.ToUpper(strings.TrimSpace(countryCode))]
	return r, ok
}

// Rules 返回按国家码排序的规则副本
func Rules() []CountryPhoneRule {
	out := make([]CountryPhoneRule, 0, len(ruleTable))
	for _, r := range ruleTable {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CountryCode < out[j].CountryCode })
	return out
}
