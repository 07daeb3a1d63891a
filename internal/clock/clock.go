// Package clock 提供可注入的等待与时间源，使旅程中的定时等待在测试中可替换。
package clock

import (
	"context"
	"time"
)

// Sleeper 等待 d 或直到 ctx 结束
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep 真实等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoSleep 立即返回，仅检查 ctx
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Recorder 记录每次等待时长而不真正等待（测试用）
type Recorder struct {
	Waits []time.Duration
}

// Sleep 实现 Sleeper
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.Waits = append(r.Waits, d)
	return ctx.Err()
}

// Total 累计等待时长
func (r *Recorder) Total() time.Duration {
	var sum time.Duration
	for _, d := range r.Waits {
		sum += d
	}
	return sum
}

// Now 时间源
type Now func() time.Time
