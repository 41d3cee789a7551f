package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// LocalDateTimeLayout 无时区的 ISO-8601 时间格式
const LocalDateTimeLayout = "2006-01-02T15:04:05.000"

var localDateTimeInputs = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// LocalDateTime 以本地日历时间编码的时间戳，JSON 中不带时区
type LocalDateTime struct {
	time.Time
}

// FromEpochMilli 将毫秒时间戳转换为本地时间
func FromEpochMilli(ms int64) LocalDateTime {
	return LocalDateTime{Time: time.UnixMilli(ms).Local()}
}

func (t LocalDateTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Local().Format(LocalDateTimeLayout))
}

func (t *LocalDateTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("local datetime: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range localDateTimeInputs {
		var (
			v   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			v, err = time.Parse(layout, s)
		} else {
			v, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			t.Time = v.Local()
			return nil
		}
	}
	return fmt.Errorf("local datetime: unsupported format %q", s)
}
