package notify

import "fmt"

// ComposeMessage builds the title and body for a new-listings notification. The wording
// is product copy and covered by tests; change it deliberately.
//
// Title varies by volume: one listing gets the urgency variant, two to five the "found"
// variant, more than five the generic update. The body varies by how many queries
// contributed and whether the single contributing query has a name.
func ComposeMessage(newCount, queryCount int, queryName string) (title, body string) {
	switch {
	case newCount == 1:
		title = "New property - act fast!"
	case newCount <= 5:
		title = fmt.Sprintf("We found %d new properties!", newCount)
	default:
		title = "Property update"
	}

	switch {
	case newCount == 1 && queryCount <= 1:
		if queryName != "" {
			body = fmt.Sprintf("Be quick! A new property just matched %q.", queryName)
		} else {
			body = "Be quick! A new property just matched your search."
		}
	case queryCount > 1:
		body = fmt.Sprintf("%d new properties across %d of your searches.", newCount, queryCount)
	case queryName != "":
		if newCount <= 3 {
			body = fmt.Sprintf("%d new properties matched %q.", newCount, queryName)
		} else {
			body = fmt.Sprintf("%q is busy: %d new properties just appeared.", queryName, newCount)
		}
	default:
		body = fmt.Sprintf("%d new properties matched your search.", newCount)
	}

	return title, body
}
