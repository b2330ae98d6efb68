package util

import "fmt"

// FormatSize renders a byte count with one decimal, e.g. "1.5 KB".
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	units := []string{"KB", "MB", "GB", "TB", "PB", "EB"}
	value := float64(size) / unit
	i := 0
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}

// FormatPercent renders done/total as a percentage with one decimal.
func FormatPercent(done, total int64) string {
	if total <= 0 {
		return "100.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(done)/float64(total)*100)
}
