package cmd

import (
	"fmt"
	"time"

	"github.com/kurtheiz/agistme/pkg/cache"
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	now := time.Now()
	diff := now.Sub(t)

	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	}

	if diff < 7*24*time.Hour {
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	} else if d < 30*24*time.Hour {
		return fmt.Sprintf("%.1f days", d.Hours()/24)
	}
	return fmt.Sprintf("%.1f months", d.Hours()/(24*30))
}

// formatCacheStats prints per-namespace cache statistics
func formatCacheStats(stats []cache.NamespaceStats, policy cache.Policy) {
	fmt.Printf("📊 Cache Statistics\n")
	fmt.Printf("═══════════════════════\n\n")

	totalEntries := 0
	var totalBytes int64
	for _, ns := range stats {
		totalEntries += ns.Entries
		totalBytes += ns.Bytes
	}

	fmt.Printf("Total entries: %s (%s)\n", formatNumber(totalEntries), formatBytes(totalBytes))
	fmt.Printf("Results fresh for %s, kept for %s\n\n", formatDuration(policy.FreshFor), formatDuration(policy.Retention()))

	if len(stats) == 0 {
		fmt.Printf("Cache is empty.\n")
		return
	}

	fmt.Printf("Namespaces:\n")
	fmt.Printf("───────────────────\n")
	for i, ns := range stats {
		if i > 0 {
			fmt.Printf("\n")
		}
		fmt.Printf("📁 %s\n", ns.Namespace)
		fmt.Printf("   Entries: %s", formatNumber(ns.Entries))
		if totalEntries > 0 {
			fmt.Printf(" (%.1f%%)", float64(ns.Entries)/float64(totalEntries)*100)
		}
		fmt.Printf("\n")
		fmt.Printf("   Size:    %s\n", formatBytes(ns.Bytes))
		fmt.Printf("   Oldest:  %s\n", formatTime(ns.Oldest))
		fmt.Printf("   Newest:  %s\n", formatTime(ns.Newest))
		if !ns.Oldest.IsZero() {
			fmt.Printf("   Span:    %s\n", formatDuration(ns.Newest.Sub(ns.Oldest)))
		}
	}
}
