package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/momentum/internal/audit"
	"github.com/wonny/momentum/internal/brain"
	"github.com/wonny/momentum/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintHeader prints a titled block
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row; the first column is left aligned,
// numbers are right aligned
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		if i == 0 {
			fmt.Printf("%-*s", widths[i], val)
		} else {
			fmt.Printf("%*s", widths[i], val)
		}
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// formatPercent renders a metric as a percentage, "n/a" when undefined
func formatPercent(m contracts.Metric) string {
	if !m.IsDefined() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", m.Value*100)
}

// formatRatio renders a ratio metric with two decimals
func formatRatio(m contracts.Metric) string {
	if !m.IsDefined() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", m.Value)
}

// formatPValue renders a p-value with significance stars
func formatPValue(m contracts.Metric) string {
	if !m.IsDefined() {
		return "n/a"
	}
	return fmt.Sprintf("%.3f%s", m.Value, audit.Stars(m))
}

// formatMetric picks a rendering by metric name
func formatMetric(name string, m contracts.Metric) string {
	switch name {
	case brain.MetricSharpe, brain.MetricSortino:
		return formatRatio(m)
	case brain.MetricHACPValue, brain.MetricNaivePValue:
		return formatPValue(m)
	}
	return formatPercent(m)
}
