package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_Scan(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	cases := []struct {
		src  interface{}
		want string
	}{
		{"2024-06-03", "2024-06-03"},
		{[]byte("2024-06-07"), "2024-06-07"},
		{"2024-06-03T00:00:00Z", "2024-06-03"},
		// 驱动以 UTC 零点返回 DATE：不得换算到业务时区
		{time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), "2024-06-03"},
		{time.Date(2024, 6, 3, 23, 0, 0, 0, ny), "2024-06-03"},
	}
	for _, tc := range cases {
		var d Date
		if err := d.Scan(tc.src); err != nil {
			t.Fatalf("Scan(%v) 失败: %v", tc.src, err)
		}
		if d.String() != tc.want {
			t.Errorf("Scan(%v)=%s 期望 %s", tc.src, d, tc.want)
		}
	}

	var d Date
	if err := d.Scan(42); err == nil {
		t.Error("不支持的类型应报错")
	}
}

func TestDate_Value(t *testing.T) {
	v, err := NewDate(2024, 6, 3).Value()
	if err != nil || v != "2024-06-03" {
		t.Errorf("Value()=%v,%v 期望 2024-06-03", v, err)
	}
	if v, _ := (Date{}).Value(); v != nil {
		t.Errorf("零值应写入 NULL，实际 %v", v)
	}
}

func TestDate_JSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 6, 1))
	if err != nil || string(b) != `"2024-06-01"` {
		t.Fatalf("Marshal=%s,%v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-06-07"`), &d); err != nil || d.String() != "2024-06-07" {
		t.Errorf("Unmarshal=%v,%v", d, err)
	}
}

func TestDate_AddDaysAndIn(t *testing.T) {
	d := NewDate(2024, 6, 7).AddDays(-6)
	if d.String() != "2024-06-01" {
		t.Errorf("期望 2024-06-01，实际 %s", d)
	}
	ny, _ := time.LoadLocation("America/New_York")
	local := d.In(ny)
	if local.Day() != 1 || local.Hour() != 0 || local.Location() != ny {
		t.Errorf("期望纽约 6/1 零点，实际 %v", local)
	}
}

func TestUser_NotifyAddress(t *testing.T) {
	blank := "  "
	addr := "boss@example.com"
	cases := []struct {
		email *string
		ok    bool
	}{
		{nil, false},
		{&blank, false},
		{&addr, true},
	}
	for _, tc := range cases {
		u := User{ManagerEmail: tc.email}
		if _, ok := u.NotifyAddress(); ok != tc.ok {
			t.Errorf("NotifyAddress ok=%v 期望 %v", ok, tc.ok)
		}
	}
	u := User{FirstName: "Ada", LastName: "Lovelace"}
	if u.FullName() != "Ada Lovelace" {
		t.Errorf("FullName=%q", u.FullName())
	}
}
