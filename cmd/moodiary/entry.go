package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moodiary/moodiary/internal/diary"
	"github.com/moodiary/moodiary/internal/models"
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Create, inspect and search diary entries",
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Write or update the entry for a day",
	Long: `Add writes the entry for a calendar day. Each day has one entry;
running add again for the same day updates it.`,
	Example: `  moodiary entry add --title "Good day" --mood good
  moodiary entry add --date 2026-08-30 --content "..." --tags work,go`,
	RunE: runAdd,
}

var (
	addDate     string
	addTitle    string
	addContent  string
	addMood     string
	addMoodNote string
	addTags     []string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent entries",
	RunE:  runList,
}

var listLimit int

var showCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Show the entry for a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search entries by text, mood or tag",
	Example: `  moodiary entry search --query hiking
  moodiary entry search --mood bad --tag work`,
	RunE: runSearch,
}

var (
	searchText string
	searchMood string
	searchTag  string
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags in use with entry counts",
	RunE:  runTags,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry from this device",
	Long: `Delete removes an entry locally. Deletion does not propagate: copies
on other devices survive and the entry can reappear after a later sync.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(entryCmd)
	entryCmd.AddCommand(addCmd, listCmd, showCmd, searchCmd, tagsCmd, deleteCmd)

	addCmd.Flags().StringVar(&addDate, "date", time.Now().Format(models.DateLayout),
		"Day to write (YYYY-MM-DD, defaults to today)")
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "Entry title")
	addCmd.Flags().StringVar(&addContent, "content", "", "Entry body")
	addCmd.Flags().StringVarP(&addMood, "mood", "m", string(models.MoodOkay),
		"Mood: terrible, bad, okay, good or amazing")
	addCmd.Flags().StringVar(&addMoodNote, "mood-note", "", "Note about the mood")
	addCmd.Flags().StringSliceVar(&addTags, "tags", nil, "Comma-separated tags")

	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 10, "Number of entries (0 for all)")

	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "Text to match")
	searchCmd.Flags().StringVarP(&searchMood, "mood", "m", "", "Mood to match")
	searchCmd.Flags().StringVar(&searchTag, "tag", "", "Tag to match")
}

func runAdd(cmd *cobra.Command, args []string) error {
	entry, err := app.Diary().SaveForDate(context.Background(), addDate, diary.Draft{
		Title:    addTitle,
		Content:  addContent,
		Mood:     models.Mood(addMood),
		MoodNote: addMoodNote,
		Tags:     addTags,
	})
	if err != nil {
		printError("Save failed: %v", err)
		return err
	}

	if jsonOutput {
		printJSON(entry)
	} else {
		printSuccess("Saved entry for %s (%s)", entry.Date, moodLabel(string(entry.Mood)))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	entries, err := app.Diary().Recent(context.Background(), listLimit)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(entries)
		return nil
	}
	if len(entries) == 0 {
		printInfo("No entries yet")
		return nil
	}
	for _, entry := range entries {
		printEntryLine(entry)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	entry, err := app.Diary().EntryByDate(context.Background(), args[0])
	if err != nil {
		printError("No entry for %s", args[0])
		return err
	}

	if jsonOutput {
		printJSON(entry)
		return nil
	}

	fmt.Printf("%s  %s  %s\n", entry.Date, moodLabel(string(entry.Mood)), entry.Title)
	if entry.MoodNote != "" {
		fmt.Printf("  mood note: %s\n", entry.MoodNote)
	}
	if entry.Content != "" {
		fmt.Println()
		fmt.Println(entry.Content)
	}
	if len(entry.Tags) > 0 {
		fmt.Printf("\n  tags: %s\n", strings.Join(entry.Tags, ", "))
	}
	if len(entry.Photos) > 0 {
		fmt.Printf("  photos: %d\n", len(entry.Photos))
	}
	if entry.Weather != nil {
		fmt.Printf("  weather: %s, %d°\n", entry.Weather.Condition, entry.Weather.Temperature)
	}
	if entry.Location != nil && entry.Location.City != "" {
		fmt.Printf("  location: %s\n", entry.Location.City)
	}
	if !entry.Synced {
		printWarning("  not yet synced")
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	entries, err := app.Diary().Search(context.Background(), diary.Query{
		Text: searchText,
		Mood: models.Mood(searchMood),
		Tag:  searchTag,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(entries)
		return nil
	}
	if len(entries) == 0 {
		printInfo("No matching entries")
		return nil
	}
	for _, entry := range entries {
		printEntryLine(entry)
	}
	return nil
}

func runTags(cmd *cobra.Command, args []string) error {
	counts, err := app.Diary().TagCounts(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(counts)
		return nil
	}
	if len(counts) == 0 {
		printInfo("No tags yet")
		return nil
	}

	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] == counts[tags[j]] {
			return tags[i] < tags[j]
		}
		return counts[tags[i]] > counts[tags[j]]
	})
	for _, tag := range tags {
		fmt.Printf("%4d  %s\n", counts[tag], tag)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := app.Diary().Delete(context.Background(), args[0]); err != nil {
		printError("Delete failed: %v", err)
		return err
	}
	printSuccess("Entry deleted locally")
	return nil
}

func printEntryLine(entry *models.DiaryEntry) {
	marker := " "
	if !entry.Synced {
		marker = "*"
	}
	title := entry.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Printf("%s %s  %-8s  %s\n", marker, entry.Date, moodLabel(string(entry.Mood)), title)
}
