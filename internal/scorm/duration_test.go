package scorm

import "testing"

func TestParseSCORM12Time(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0000:00:00.00", 0},
		{"0000:01:00.00", 6000},
		{"0000:00:30.00", 3000},
		{"0001:30:15.50", 541550},
		{"00:00:01", 100},
		{"0000:00:00.5", 50},
	}
	for _, c := range cases {
		got, err := ParseSCORM12Time(c.in)
		if err != nil {
			t.Errorf("ParseSCORM12Time(%q) error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseSCORM12Time(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseSCORM12Time_Invalid(t *testing.T) {
	for _, in := range []string{"", "1:2:3", "0000:99:00.00", "0000:00:75.00", "PT1H", "abc"} {
		if _, err := ParseSCORM12Time(in); err == nil {
			t.Errorf("ParseSCORM12Time(%q) expected error", in)
		}
	}
}

func TestFormatSCORM12Time(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0000:00:00.00"},
		{6000, "0000:01:00.00"},
		{9000, "0000:01:30.00"},
		{541550, "0001:30:15.50"},
		{100 * 3600 * 10000, "10000:00:00.00"}, // 小时超过4位照常输出
	}
	for _, c := range cases {
		if got := FormatSCORM12Time(c.in); got != c.want {
			t.Errorf("FormatSCORM12Time(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseISO8601Duration(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"PT0H1M0S", 6000},
		{"PT0H0M30S", 3000},
		{"PT1H5M2.5S", 390250},
		{"PT90S", 9000},
		{"P1DT1H", 9000000},
		{"PT0S", 0},
	}
	for _, c := range cases {
		got, err := ParseISO8601Duration(c.in)
		if err != nil {
			t.Errorf("ParseISO8601Duration(%q) error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseISO8601Duration(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseISO8601Duration_Invalid(t *testing.T) {
	for _, in := range []string{"", "P", "PT", "1H30M", "0000:01:00.00"} {
		if _, err := ParseISO8601Duration(in); err == nil {
			t.Errorf("ParseISO8601Duration(%q) expected error", in)
		}
	}
}

// 规范性质：1.2 总时长 1 分钟加会话 30 秒 = 1 分 30 秒
func TestAddTime_SCORM12(t *testing.T) {
	got, err := AddTime(Version12, "0000:01:00.00", "0000:00:30.00")
	if err != nil {
		t.Fatalf("AddTime error: %v", err)
	}
	if got != "0000:01:30.00" {
		t.Errorf("AddTime = %q, want %q", got, "0000:01:30.00")
	}
}

// 规范性质：2004 总时长 PT0H1M0S 加 PT0H0M30S 共 90 秒
func TestAddTime_SCORM2004(t *testing.T) {
	got, err := AddTime(Version2004, "PT0H1M0S", "PT0H0M30S")
	if err != nil {
		t.Fatalf("AddTime error: %v", err)
	}
	if secs := TimeSeconds(Version2004, got); secs != 90 {
		t.Errorf("accumulated total %q = %d seconds, want 90", got, secs)
	}
}

// 累加必须精确：重复累加小数秒不得产生舍入漂移
func TestAddTime_NoDrift(t *testing.T) {
	total := "0000:00:00.00"
	var err error
	for i := 0; i < 1000; i++ {
		total, err = AddTime(Version12, total, "0000:00:00.01")
		if err != nil {
			t.Fatalf("AddTime iteration %d: %v", i, err)
		}
	}
	if total != "0000:00:10.00" {
		t.Errorf("1000 x 0.01s accumulated to %q, want 0000:00:10.00", total)
	}
}

func TestFormatISO8601Duration(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "PT0H0M0S"},
		{9000, "PT0H1M30S"},
		{390250, "PT1H5M2.50S"},
	}
	for _, c := range cases {
		if got := FormatISO8601Duration(c.in); got != c.want {
			t.Errorf("FormatISO8601Duration(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAddTime_EmptyTotal(t *testing.T) {
	got, err := AddTime(Version2004, "", "PT30S")
	if err != nil {
		t.Fatalf("AddTime error: %v", err)
	}
	if secs := TimeSeconds(Version2004, got); secs != 30 {
		t.Errorf("AddTime with empty total = %q (%d s), want 30 s", got, secs)
	}
}
