package app

import (
	"fmt"
	"strconv"
	"time"
)

// FormatDayMonth renders a date as the unpadded "D/M" key used by the
// anniversary store, e.g. 2024-03-15 -> "15/3".
func FormatDayMonth(t time.Time) string {
	return fmt.Sprintf("%d/%d", t.Day(), int(t.Month()))
}

// HumanDate renders a date for message subjects and bodies, e.g. "15 March".
func HumanDate(t time.Time) string {
	return t.Format("2 January")
}

// DateSpellings returns every raw spelling of the target date the store may
// hold: day and month each padded or unpadded. The store matches by exact
// string equality, so querying all spellings is what makes "15/03" and
// "15/3" both hit a March 15 run.
func DateSpellings(t time.Time) []string {
	days := []string{strconv.Itoa(t.Day()), fmt.Sprintf("%02d", t.Day())}
	months := []string{strconv.Itoa(int(t.Month())), fmt.Sprintf("%02d", int(t.Month()))}

	seen := make(map[string]bool)
	spellings := make([]string, 0, 4)
	for _, d := range days {
		for _, m := range months {
			s := d + "/" + m
			if !seen[s] {
				seen[s] = true
				spellings = append(spellings, s)
			}
		}
	}
	return spellings
}
