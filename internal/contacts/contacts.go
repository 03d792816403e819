// Package contacts provides the immutable contact book used to resolve names
// mentioned in conversation into email addresses.
package contacts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Contact is a single contact book entry.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Book is a read-only contact list loaded once per process lifetime.
type Book struct {
	contacts []Contact
}

type contactsFile struct {
	Contacts []Contact `json:"contacts"`
}

// Load reads a contact book from a JSON file.
// A missing file yields an empty book, not an error.
func Load(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Book{}, nil
		}
		return nil, fmt.Errorf("failed to read contacts: %w", err)
	}

	var file contactsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse contacts: %w", err)
	}

	return &Book{contacts: file.Contacts}, nil
}

// NewBook creates a contact book from a fixed list, used by tests.
func NewBook(contacts []Contact) *Book {
	return &Book{contacts: contacts}
}

// Resolve returns the email address for a contact name.
// The match is case-insensitive and exact.
func (b *Book) Resolve(name string) (string, bool) {
	for _, c := range b.contacts {
		if strings.EqualFold(c.Name, name) {
			return c.Email, true
		}
	}
	return "", false
}

// All returns every contact in the book.
func (b *Book) All() []Contact {
	return b.contacts
}

// PromptList renders the contact book as "- name: email" lines for the
// system prompt.
func (b *Book) PromptList() string {
	var sb strings.Builder
	for _, c := range b.contacts {
		fmt.Fprintf(&sb, "- %s: %s\n", c.Name, c.Email)
	}
	return sb.String()
}
