package utils

import (
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate 解析 YYYY-MM-DD 格式的日期，按 UTC 处理
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// YearsBetween 计算周岁，生日当天算满一岁
func YearsBetween(birth, now time.Time) int {
	now = now.In(birth.Location())
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}
