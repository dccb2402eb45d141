package phone

import (
	"github.com/nyaruka/phonenumbers"
)

// Display 规范号码的国际展示格式，例如 "+254 712 345678"；无法解析时原样返回
func Display(canonical string) string {
	if canonical == "" {
		return ""
	}
	num, err := phonenumbers.Parse(canonical, "")
	if err != nil {
		return canonical
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
}
