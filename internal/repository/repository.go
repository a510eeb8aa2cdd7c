package repository

import (
	"errors"
	"time"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

const dateLayout = "2006-01-02"

// dayOf 截断到日期（保留时区）
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
