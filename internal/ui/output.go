// Package ui renders the CLI's human-facing progress output. Structured
// logging goes to stderr via zerolog; this package is the friendly layer on
// top of it.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
	red    = color.New(color.FgRed)
)

// Header prints a banner for the start of a run.
func Header(text string) {
	line := strings.Repeat("=", 60)
	green.Printf("\n%s\n", line)
	green.Printf("%-60s\n", center(text, 60))
	green.Printf("%s\n\n", line)
}

// Step prints a numbered pipeline step.
func Step(stepNum, totalSteps int, text string) {
	yellow.Printf("[%d/%d] %s\n", stepNum, totalSteps, text)
}

// Success prints a success message.
func Success(text string) {
	green.Printf("  → %s\n", text)
}

// Info prints an informational message.
func Info(text string) {
	fmt.Printf("  → %s\n", text)
}

// Warning prints a warning message.
func Warning(text string) {
	yellow.Printf("  ⚠ %s\n", text)
}

// Error prints an error message.
func Error(text string) {
	red.Printf("Error: %s\n", text)
}

// BlueText prints blue text.
func BlueText(text string) {
	blue.Println(text)
}

// YellowText prints yellow text.
func YellowText(text string) {
	yellow.Println(text)
}

// center left-pads text so it sits in the middle of width columns.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
