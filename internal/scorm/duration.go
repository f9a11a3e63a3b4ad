package scorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// 时长运算全部走整型厘秒（1/100 秒）。total_time 跨会话无限累加，
// 任何浮点舍入都会被放大，所以解析/格式化/相加必须精确。

// scorm12TimePattern 对应 CMITimespan：hhhh:mm:ss.ss（小时 2~4 位，小数 0~2 位）
var scorm12TimePattern = regexp.MustCompile(`^(\d{2,4}):(\d{2}):(\d{2})(?:\.(\d{1,2}))?$`)

// iso8601DurationPattern 对应 SCORM 2004 的 timeinterval(second,10,2)
var iso8601DurationPattern = regexp.MustCompile(
	`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d{1,2})?)S)?)?$`)

// ParseSCORM12Time 解析 1.2 的 hhhh:mm:ss.ss 为厘秒
func ParseSCORM12Time(s string) (int64, error) {
	m := scorm12TimePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid SCORM 1.2 timespan %q", s)
	}
	hours, _ := strconv.ParseInt(m[1], 10, 64)
	minutes, _ := strconv.ParseInt(m[2], 10, 64)
	seconds, _ := strconv.ParseInt(m[3], 10, 64)
	if minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("invalid SCORM 1.2 timespan %q: minute/second out of range", s)
	}

	var centis int64
	if m[4] != "" {
		frac := m[4]
		if len(frac) == 1 {
			frac += "0"
		}
		centis, _ = strconv.ParseInt(frac, 10, 64)
	}

	return ((hours*60+minutes)*60+seconds)*100 + centis, nil
}

// FormatSCORM12Time 将厘秒格式化为 hhhh:mm:ss.ss
func FormatSCORM12Time(centis int64) string {
	if centis < 0 {
		centis = 0
	}
	frac := centis % 100
	total := centis / 100
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%04d:%02d:%02d.%02d", hours, minutes, seconds, frac)
}

// ParseISO8601Duration 解析 2004 的 PTnHnMnS（完整形式 PnYnMnDTnHnMn.nnS）为厘秒。
// 年按 365 天、月按 30 天折算，与 ADL 参考实现一致。
func ParseISO8601Duration(s string) (int64, error) {
	if s == "" || s == "P" || s == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}
	m := iso8601DurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", s)
	}

	var centis int64
	if m[1] != "" {
		v, _ := strconv.ParseInt(m[1], 10, 64)
		centis += v * 365 * 24 * 3600 * 100
	}
	if m[2] != "" {
		v, _ := strconv.ParseInt(m[2], 10, 64)
		centis += v * 30 * 24 * 3600 * 100
	}
	if m[3] != "" {
		v, _ := strconv.ParseInt(m[3], 10, 64)
		centis += v * 24 * 3600 * 100
	}
	if m[4] != "" {
		v, _ := strconv.ParseInt(m[4], 10, 64)
		centis += v * 3600 * 100
	}
	if m[5] != "" {
		v, _ := strconv.ParseInt(m[5], 10, 64)
		centis += v * 60 * 100
	}
	if m[6] != "" {
		sec := m[6]
		frac := "00"
		if i := strings.IndexByte(sec, '.'); i >= 0 {
			frac = sec[i+1:]
			if len(frac) == 1 {
				frac += "0"
			}
			sec = sec[:i]
		}
		v, _ := strconv.ParseInt(sec, 10, 64)
		f, _ := strconv.ParseInt(frac, 10, 64)
		centis += v*100 + f
	}

	return centis, nil
}

// FormatISO8601Duration 将厘秒格式化为 PTnHnMnS 形式（保留显式的 0 分量，
// Storyline 等播放器解析 PT0H1M30S 这种写法没有问题，而省略分量的写法有过兼容事故）。
func FormatISO8601Duration(centis int64) string {
	if centis < 0 {
		centis = 0
	}
	frac := centis % 100
	total := centis / 100
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if frac == 0 {
		return fmt.Sprintf("PT%dH%dM%dS", hours, minutes, seconds)
	}
	return fmt.Sprintf("PT%dH%dM%d.%02dS", hours, minutes, seconds, frac)
}

// ParseTime 按版本解析原生格式的时长为厘秒，空串视为 0。
func ParseTime(version, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if version == Version2004 {
		return ParseISO8601Duration(s)
	}
	return ParseSCORM12Time(s)
}

// FormatTime 按版本把厘秒写回原生格式
func FormatTime(version string, centis int64) string {
	if version == Version2004 {
		return FormatISO8601Duration(centis)
	}
	return FormatSCORM12Time(centis)
}

// AddTime 把 session 时长累加到 total 上，两者都是 version 的原生格式
func AddTime(version, total, session string) (string, error) {
	t, err := ParseTime(version, total)
	if err != nil {
		return "", fmt.Errorf("total_time: %w", err)
	}
	s, err := ParseTime(version, session)
	if err != nil {
		return "", fmt.Errorf("session_time: %w", err)
	}
	return FormatTime(version, t+s), nil
}

// TimeSeconds 把原生格式时长换算成整秒（向下取整），供课程进度的时长统计用
func TimeSeconds(version, s string) int {
	centis, err := ParseTime(version, s)
	if err != nil {
		return 0
	}
	return int(centis / 100)
}
