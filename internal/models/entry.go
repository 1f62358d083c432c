package models

import "strings"

// Headers is the column layout of the output sheet. Unique ID is column H.
var Headers = []string{"Title", "Category", "Tags", "Content", "Source", "Author", "Date Added", "Unique ID", "Notes"}

// UniqueIDColumn is the zero-based index of the Unique ID column in Headers.
const UniqueIDColumn = 7

// DateLayout is the format used for Entry.DateAdded.
const DateLayout = "2006-01-02"

// Entry is the record handed to sinks. It is not modified after creation.
type Entry struct {
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	Content   string   `json:"content"`
	Source    string   `json:"source"`
	Author    string   `json:"author"`
	DateAdded string   `json:"date_added"`
	UniqueID  string   `json:"unique_id"`
	Notes     string   `json:"notes"`
}

// Row renders the entry as a sheet row in Headers order.
func (e *Entry) Row() []string {
	return []string{
		e.Title,
		e.Category,
		strings.Join(e.Tags, ", "),
		e.Content,
		e.Source,
		e.Author,
		e.DateAdded,
		e.UniqueID,
		e.Notes,
	}
}
