package models

import "strings"

// Category identifies one kind of contact identifier
type Category int

const (
	Email Category = iota
	Phone
	Facebook
	Twitter
	LinkedIn
	Instagram
)

// AllCategories lists every category in result-sink column order
var AllCategories = []Category{Phone, Email, Facebook, Twitter, LinkedIn, Instagram}

var categoryNames = map[Category]string{
	Email:     "email",
	Phone:     "phone",
	Facebook:  "facebook",
	Twitter:   "twitter",
	LinkedIn:  "linkedin",
	Instagram: "instagram",
}

// String implements fmt.Stringer for logging
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// IsSocial reports whether the category holds social-media profile references
func (c Category) IsSocial() bool {
	switch c {
	case Facebook, Twitter, LinkedIn, Instagram:
		return true
	}
	return false
}

// ParseCategory maps a category name (case-insensitive) back to its Category
func ParseCategory(name string) (Category, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for c, n := range categoryNames {
		if n == lower {
			return c, true
		}
	}
	return 0, false
}
