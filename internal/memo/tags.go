package memo

// DefaultIcon and DefaultColor are used for Untagged and for new tags without a color.
const (
	DefaultIcon  = "tag"
	DefaultColor = "gray"
)

// Colors is the display palette new tags draw from.
var Colors = []string{"pink", "blue", "green", "purple", "yellow", "red", "indigo", "teal", "orange", "cyan"}

// ValidColor reports whether c is in the palette or the default color.
func ValidColor(c string) bool {
	if c == DefaultColor {
		return true
	}
	for _, p := range Colors {
		if p == c {
			return true
		}
	}
	return false
}

// PredefinedTags seeds an empty catalog.
func PredefinedTags() []Tag {
	return []Tag{
		{Name: "Shopping", Description: "Shopping discovery, research, trends, deals, comparisons, reviews, and recommendations.", Color: "pink", Icon: "shopping-bag"},
		{Name: "Travel", Description: "Travel planning, research, deals, and recommendations.", Color: "blue", Icon: "plane"},
		{Name: "Health", Description: "Health research, tips, and advice.", Color: "green", Icon: "heart"},
		{Name: "Technology", Description: "Technology research, tips, advice, learning, products, companies, and trends.", Color: "purple", Icon: "cpu"},
		{Name: "Investing", Description: "Investing research, tips, and advice.", Color: "yellow", Icon: "trending-up"},
		{Name: "Entertainment", Description: "Restaurants, movies, music, books, and events.", Color: "red", Icon: "film"},
		{Name: "Education", Description: "Learning, courses, and resources.", Color: "indigo", Icon: "book"},
	}
}

// UntaggedTag is the display entry for memos without a catalog tag.
func UntaggedTag() Tag {
	return Tag{Name: Untagged, Description: "Memos without a tag.", Color: DefaultColor, Icon: DefaultIcon}
}
