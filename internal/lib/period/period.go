// Package period содержит расчёты дат для тарифов и периодических задач.
package period

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// DaysLeft возвращает число дней до end, округлённое вверх.
// Для прошедшей даты результат не больше нуля.
func DaysLeft(end, now time.Time) int {
	return int(math.Ceil(float64(end.Sub(now)) / float64(day)))
}

// Days возвращает длительность в n суток.
func Days(n int) time.Duration {
	return time.Duration(n) * day
}

// Before возвращает момент, отстоящий от now на window в прошлое.
func Before(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}
