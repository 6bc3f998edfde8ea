package main

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	moodColors   = map[string]*color.Color{
		"terrible": color.New(color.FgRed),
		"bad":      color.New(color.FgMagenta),
		"okay":     color.New(color.FgYellow),
		"good":     color.New(color.FgGreen),
		"amazing":  color.New(color.FgHiGreen),
	}
)

func printSuccess(format string, args ...interface{}) {
	_, _ = successColor.Printf(format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	_, _ = errorColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	_, _ = warningColor.Printf(format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	_, _ = infoColor.Printf(format+"\n", args...)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("Failed to encode JSON: %v", err)
		return
	}
	fmt.Println(string(data))
}

func moodLabel(mood string) string {
	if c, ok := moodColors[mood]; ok {
		return c.Sprint(mood)
	}
	return mood
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}
