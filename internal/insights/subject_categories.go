package insights

import (
	"regexp"
	"strings"
	"unicode"
)

// subjectCategory is one curated subject-line predicate. Terms are matched on
// word boundaries, case-insensitively, never as raw substrings ("sale" must
// not match "wholesale").
type subjectCategory struct {
	Key   string
	Label string
	Terms []string
	match func(string) bool // overrides term matching when set
}

var subjectCategories = buildSubjectCategories()

func buildSubjectCategories() []subjectCategory {
	cats := []subjectCategory{
		{Key: "deadline_urgency", Label: "Deadline & Urgency", Terms: []string{
			"last chance", "ends tonight", "ends today", "ends soon", "final hours",
			"hurry", "don't miss", "dont miss", "expires", "deadline", "act now",
			"time is running out", "closing soon", "today only", "tonight only",
		}},
		{Key: "scarcity", Label: "Scarcity", Terms: []string{
			"limited", "limited edition", "while supplies last", "almost gone",
			"selling fast", "only a few", "low stock", "back in stock", "rare",
			"exclusive drop", "few left",
		}},
		{Key: "savings", Label: "Savings & Discounts", Terms: []string{
			"sale", "off", "discount", "save", "deal", "deals", "clearance",
			"markdown", "price drop", "bogo", "coupon", "promo",
		}},
		{Key: "free", Label: "Free Offers", Terms: []string{
			"free", "freebie", "free shipping", "free gift", "on us", "no cost",
		}},
		{Key: "personalization", Label: "Personalization", Terms: []string{
			"you", "your", "you're", "yours", "just for you", "picked for you",
			"made for you",
		}},
		{Key: "curiosity", Label: "Curiosity & Teasers", Terms: []string{
			"secret", "revealed", "sneak peek", "guess what", "surprise",
			"you won't believe", "behind the scenes", "mystery", "finally",
		}},
		{Key: "newness", Label: "New Arrivals", Terms: []string{
			"new", "just in", "just arrived", "just dropped", "fresh",
			"introducing", "brand new", "now available", "launch",
		}},
		{Key: "exclusivity", Label: "Exclusivity & VIP", Terms: []string{
			"exclusive", "vip", "members only", "insider", "early access",
			"invite", "private", "first look",
		}},
		{Key: "social_proof", Label: "Social Proof", Terms: []string{
			"best seller", "bestseller", "best-selling", "top rated", "most loved",
			"customer favorite", "fan favorite", "everyone", "trending", "reviews",
		}},
		{Key: "gifting", Label: "Gifting", Terms: []string{
			"gift", "gifts", "gift guide", "for him", "for her", "for mom",
			"for dad", "stocking stuffer", "wishlist",
		}},
		{Key: "seasonal", Label: "Seasonal & Holiday", Terms: []string{
			"holiday", "christmas", "black friday", "cyber monday", "halloween",
			"thanksgiving", "valentine", "mother's day", "father's day", "easter",
			"summer", "winter", "spring", "fall", "new year",
		}},
		{Key: "reminder", Label: "Reminders & Follow-ups", Terms: []string{
			"reminder", "don't forget", "dont forget", "still waiting",
			"in your cart", "left behind", "come back", "we miss you", "last call",
		}},
		{Key: "announcement", Label: "Announcements", Terms: []string{
			"announcing", "announcement", "big news", "update", "heads up",
			"important", "introducing",
		}},
		{Key: "how_to", Label: "How-to & Education", Terms: []string{
			"how to", "guide", "tips", "tricks", "learn", "tutorial", "ways to",
			"step by step",
		}},
		{Key: "shipping", Label: "Shipping & Delivery", Terms: []string{
			"free shipping", "fast shipping", "ships today", "delivery",
			"arrives before", "order by", "in time for",
		}},
		{Key: "thanks_loyalty", Label: "Thanks & Loyalty", Terms: []string{
			"thank you", "thanks", "rewards", "points", "loyalty", "appreciation",
			"because you",
		}},
		{Key: "preview_upcoming", Label: "Previews & Upcoming", Terms: []string{
			"coming soon", "preview", "get ready", "mark your calendar",
			"save the date", "tomorrow", "this week",
		}},
		{Key: "price_anchor", Label: "Explicit Prices", Terms: []string{
			"under", "starting at", "from", "each", "or less",
		}},
	}
	for i := range cats {
		cats[i].match = wordBoundaryMatcher(cats[i].Terms)
	}

	cats = append(cats,
		subjectCategory{Key: "question", Label: "Questions", match: func(s string) bool {
			return strings.Contains(s, "?")
		}},
		subjectCategory{Key: "percent_number", Label: "Numbers & Percentages", match: func(s string) bool {
			for _, r := range s {
				if unicode.IsDigit(r) {
					return true
				}
			}
			return false
		}},
		subjectCategory{Key: "emoji", Label: "Emoji", match: func(s string) bool {
			for _, r := range s {
				if unicode.Is(unicode.So, r) || (r >= 0x1F000 && r <= 0x1FAFF) {
					return true
				}
			}
			return false
		}},
	)
	return cats
}

// wordBoundaryMatcher compiles a case-insensitive alternation of the terms
// anchored on word boundaries.
func wordBoundaryMatcher(terms []string) func(string) bool {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return re.MatchString
}

// lengthBin is one subject-length bucket, in characters.
type lengthBin struct {
	Key   string
	Label string
	Min   int
	Max   int // inclusive; -1 means unbounded
}

var subjectLengthBins = []lengthBin{
	{Key: "len_0_30", Label: "Short (0-30 chars)", Min: 0, Max: 30},
	{Key: "len_31_50", Label: "Medium (31-50 chars)", Min: 31, Max: 50},
	{Key: "len_51_70", Label: "Long (51-70 chars)", Min: 51, Max: 70},
	{Key: "len_71_plus", Label: "Very long (71+ chars)", Min: 71, Max: -1},
}

func (b lengthBin) contains(n int) bool {
	if n < b.Min {
		return false
	}
	return b.Max < 0 || n <= b.Max
}
