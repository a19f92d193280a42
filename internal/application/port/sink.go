package port

import "time"

// Sink 控制台输出
type Sink interface {
	// WriteLive 覆盖当前行（倒计时等）
	WriteLive(line string) error
	// WriteSnapshot 追加一行带时间戳的评估结果
	WriteSnapshot(ts time.Time, line string) error
	NewLine() error
}
