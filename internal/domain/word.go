package domain

import (
	"time"
	"unicode/utf8"
)

// WordEntry is one stored word with its metadata.
type WordEntry struct {
	Word      string    `json:"word"`
	Timestamp time.Time `json:"timestamp"`
	Length    int       `json:"length"`
}

// NewWordEntry stamps a word with the current time and its length in characters.
func NewWordEntry(word string) WordEntry {
	return WordEntry{
		Word:      word,
		Timestamp: Now(),
		Length:    utf8.RuneCountInString(word),
	}
}
