package model

// DiaryEntry 一篇日记，(Character, Year, Month, Day, Sequence) 唯一
// Sequence 来自同日多篇时文件名上的 (n) 后缀，首篇为 0
type DiaryEntry struct {
	Character string
	Year      int
	Month     int
	Day       int
	Sequence  int
	Body      string
}
