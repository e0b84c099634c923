package main

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"onthefly/internal/commentary"
)

var printer = message.NewPrinter(language.English)

func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

func formatLatency(ms float64) string {
	if ms <= 0 {
		return "-"
	}
	return printer.Sprintf("%.0f ms", ms)
}

func formatPercent(value float64) string {
	return printer.Sprintf("%.1f%%", value)
}

func formatScore(c commentary.Commentary) string {
	return fmt.Sprintf("%d-%d", c.HomeScore, c.AwayScore)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatOffset(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
