// Package report renders result sets as chat summaries and downloadable text reports.
package report

import (
	"chat-bot/internal/providers"
	"chat-bot/internal/service/scanner"
	"fmt"
	"strings"
	"time"
)

const (
	// SummaryLines is the number of records shown in a chat summary
	SummaryLines = 10
	// ExportThreshold is the result count above which a report file is attached
	ExportThreshold = 10

	previewChars = 100
	detailChars  = 500
	rule         = "--------------------------------------------------"
	shortRule    = "------------------------------"
	timeLayout   = "2006-01-02 15:04:05"
)

// ShouldExport reports whether a full report file accompanies the summary
func ShouldExport(count int, admin bool) bool {
	return count > ExportThreshold || admin
}

// Search describes a chat scan for rendering
type Search struct {
	Scope         string
	Terms         []string
	Username      string
	Matches       []scanner.Match
	TotalFound    int
	RoomsSearched int
	Rooms         []scanner.RoomSummary
	At            time.Time
}

// Summary renders the in-chat result message
func (s Search) Summary(lines int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 %s\n\n", s.title())
	if s.Username != "" {
		fmt.Fprintf(&b, "User: @%s\n", s.Username)
	}
	fmt.Fprintf(&b, "Terms: %s\n", strings.Join(s.Terms, ", "))

	if len(s.Matches) == 0 {
		b.WriteString("No messages found.")
		if s.RoomsSearched > 0 {
			fmt.Fprintf(&b, "\nSearched %d chats", s.RoomsSearched)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Found: %d messages\n", s.TotalFound)
	if s.RoomsSearched > 0 {
		fmt.Fprintf(&b, "Searched: %d chats\n", s.RoomsSearched)
	}
	shown := min(lines, len(s.Matches))
	fmt.Fprintf(&b, "Showing: %d of %d results\n\n", shown, len(s.Matches))

	for i, m := range s.Matches[:shown] {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, m.Author(), m.Date.Format("2006-01-02"))
		fmt.Fprintf(&b, "   %s\n", Truncate(oneLine(m.Text), previewChars))
		fmt.Fprintf(&b, "   Matched: %s\n", m.Term)
	}

	if len(s.Rooms) > 1 {
		b.WriteString("\nChats with matches:\n")
		for i, r := range s.Rooms {
			if i == 5 {
				fmt.Fprintf(&b, "... and %d more\n", len(s.Rooms)-5)
				break
			}
			fmt.Fprintf(&b, "• %s: %d matches\n", roomTitle(r.Title), r.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Document renders the full report file
func (s Search) Document() string {
	var b strings.Builder
	b.WriteString("CHAT SEARCH RESULTS\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "Scope: %s\n", s.Scope)
	if s.Username != "" {
		fmt.Fprintf(&b, "Searched for user: @%s\n", s.Username)
	}
	fmt.Fprintf(&b, "Terms: %s\n", strings.Join(s.Terms, ", "))
	fmt.Fprintf(&b, "Search completed: %s\n", s.At.Format(timeLayout))
	fmt.Fprintf(&b, "Total results found: %d\n", s.TotalFound)
	fmt.Fprintf(&b, "Results listed: %d\n", len(s.Matches))
	if s.RoomsSearched > 0 {
		fmt.Fprintf(&b, "Chats searched: %d\n", s.RoomsSearched)
	}
	b.WriteString("\n")

	if len(s.Rooms) > 0 {
		b.WriteString("CHAT SUMMARY:\n" + shortRule + "\n")
		for _, r := range s.Rooms {
			fmt.Fprintf(&b, "%s: %d results\n", roomTitle(r.Title), r.Count)
		}
		b.WriteString("\n")
	}

	b.WriteString("DETAILED RESULTS:\n" + shortRule + "\n")
	for i, m := range s.Matches {
		fmt.Fprintf(&b, "\n%d. Message ID: %d\n", i+1, m.MessageID)
		fmt.Fprintf(&b, "   Chat: %s\n", roomTitle(m.RoomTitle))
		fmt.Fprintf(&b, "   Date: %s\n", m.Date.Format(timeLayout))
		name := m.FirstName
		if name == "" {
			name = "Unknown"
		}
		if m.Username != "" {
			name += " (@" + m.Username + ")"
		}
		fmt.Fprintf(&b, "   User: %s\n", name)
		fmt.Fprintf(&b, "   Matched term: %s\n", m.Term)
		fmt.Fprintf(&b, "   Text: %s\n", Truncate(m.Text, detailChars))
		if m.Link != "" {
			fmt.Fprintf(&b, "   Link: %s\n", m.Link)
		}
	}
	return b.String()
}

func (s Search) title() string {
	switch {
	case s.Username != "":
		return "User Search Results"
	case s.RoomsSearched > 0:
		return "Global Search Results"
	default:
		return "Search Results"
	}
}

// News describes a news query for rendering
type News struct {
	Query       string
	Articles    []providers.NewsArticle
	Quote       *providers.PriceQuote
	QuoteSource string
	At          time.Time
}

func (n News) Summary(lines int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📰 News: %s\n\n", n.Query)
	if n.Quote != nil {
		b.WriteString(QuoteBlock(*n.Quote, n.QuoteSource))
		b.WriteString("\n\n")
	}
	if len(n.Articles) == 0 {
		b.WriteString("No news found for your query.")
		return b.String()
	}
	for i, a := range n.Articles[:min(lines, len(n.Articles))] {
		title := a.Title
		if title == "" {
			title = "No title"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		if a.URL != "" {
			fmt.Fprintf(&b, "   %s\n", a.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (n News) Document() string {
	var b strings.Builder
	b.WriteString("NEWS SEARCH RESULTS\n")
	fmt.Fprintf(&b, "Query: %s\n", n.Query)
	fmt.Fprintf(&b, "Search Date: %s\n", n.At.Format(timeLayout))
	fmt.Fprintf(&b, "Total Articles: %d\n\n", len(n.Articles))

	if q := n.Quote; q != nil {
		b.WriteString("CRYPTOCURRENCY DATA\n")
		fmt.Fprintf(&b, "Asset: %s (%s)\n", q.Name, q.Symbol)
		fmt.Fprintf(&b, "Price: $%s\n", Money(q.Price))
		fmt.Fprintf(&b, "24h Change: %.2f%%\n", q.PercentChange24h)
		if q.MarketCap > 0 {
			fmt.Fprintf(&b, "Market Cap: $%.0f\n", q.MarketCap)
		}
		fmt.Fprintf(&b, "Last Updated: %s\n", q.LastUpdated)
		fmt.Fprintf(&b, "Source: %s\n\n", n.QuoteSource)
	}

	b.WriteString("ARTICLES\n" + strings.Repeat("=", 50) + "\n\n")
	for i, a := range n.Articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a.Title)
		fmt.Fprintf(&b, "   Source: %s\n", orUnknown(a.Source))
		fmt.Fprintf(&b, "   Description: %s\n", orDefault(a.Description, "No description"))
		fmt.Fprintf(&b, "   URL: %s\n", a.URL)
		fmt.Fprintf(&b, "   Published: %s\n", orUnknown(a.PublishedAt))
		b.WriteString(rule + "\n")
	}
	return b.String()
}

// Posts describes a social search for rendering
type Posts struct {
	Query string
	Posts []providers.SocialPost
	At    time.Time
}

func (p Posts) kind() string {
	if strings.HasPrefix(p.Query, "@") {
		return "User Tweets"
	}
	return "Tweet Search"
}

func (p Posts) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🐦 %s: %s\n\n", p.kind(), p.Query)
	if len(p.Posts) == 0 {
		b.WriteString("No tweets found. Try different keywords or check the username.")
		return b.String()
	}
	for i, post := range p.Posts {
		fmt.Fprintf(&b, "%d. @%s: %s\n", i+1, orDefault(post.AuthorUsername, "unknown"), Truncate(oneLine(post.Text), 200))
		if post.URL != "" {
			fmt.Fprintf(&b, "   %s\n", post.URL)
		}
		if post.Metrics.LikeCount > 0 || post.Metrics.RetweetCount > 0 {
			fmt.Fprintf(&b, "   ❤️ %d | 🔄 %d\n", post.Metrics.LikeCount, post.Metrics.RetweetCount)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p Posts) Document() string {
	var b strings.Builder
	b.WriteString("TWITTER SEARCH RESULTS\n")
	fmt.Fprintf(&b, "Query: %s\n", p.Query)
	fmt.Fprintf(&b, "Search Type: %s\n", strings.ToLower(p.kind()))
	fmt.Fprintf(&b, "Search Date: %s\n", p.At.Format(timeLayout))
	fmt.Fprintf(&b, "Total Tweets: %d\n\n", len(p.Posts))
	b.WriteString("TWEETS\n" + strings.Repeat("=", 50) + "\n\n")
	for i, post := range p.Posts {
		fmt.Fprintf(&b, "%d. Tweet ID: %s\n", i+1, post.ID)
		author := "@" + orDefault(post.AuthorUsername, "unknown")
		if post.AuthorName != "" {
			author += " (" + post.AuthorName + ")"
		}
		if post.AuthorVerified {
			author += " ✓"
		}
		fmt.Fprintf(&b, "   Author: %s\n", author)
		fmt.Fprintf(&b, "   Text: %s\n", post.Text)
		fmt.Fprintf(&b, "   Created: %s\n", orDefault(post.CreatedAt, "N/A"))
		fmt.Fprintf(&b, "   URL: %s\n", orDefault(post.URL, "N/A"))
		fmt.Fprintf(&b, "   Likes: %d\n", post.Metrics.LikeCount)
		fmt.Fprintf(&b, "   Retweets: %d\n", post.Metrics.RetweetCount)
		fmt.Fprintf(&b, "   Replies: %d\n", post.Metrics.ReplyCount)
		b.WriteString(rule + "\n\n")
	}
	return b.String()
}

// QuoteBlock renders a price quote
func QuoteBlock(q providers.PriceQuote, source string) string {
	var b strings.Builder
	arrow := "➡️"
	switch {
	case q.PercentChange24h > 0:
		arrow = "📈"
	case q.PercentChange24h < 0:
		arrow = "📉"
	}
	fmt.Fprintf(&b, "💰 %s (%s)\n", q.Name, q.Symbol)
	fmt.Fprintf(&b, "Price: $%s\n", Money(q.Price))
	fmt.Fprintf(&b, "24h Change: %s %.2f%%", arrow, q.PercentChange24h)
	if q.MarketCap > 0 {
		fmt.Fprintf(&b, "\nMarket Cap: $%s", Compact(q.MarketCap))
	}
	if q.Volume24h > 0 {
		fmt.Fprintf(&b, "\n24h Volume: $%s", Compact(q.Volume24h))
	}
	if source != "" {
		fmt.Fprintf(&b, "\nSource: %s", source)
	}
	return b.String()
}

// Money formats a price with thousands separators and two decimals;
// sub-dollar prices keep six decimals.
func Money(v float64) string {
	if v != 0 && v < 1 && v > -1 {
		return fmt.Sprintf("%.6f", v)
	}
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Compact renders large amounts as 1.2B / 3.4M
func Compact(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.1fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	default:
		return Money(v)
	}
}

// Truncate cuts s to n runes, appending "..." when shortened
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Split breaks text into chunks of at most max bytes on line boundaries.
// A single line longer than max is hard-cut on a rune boundary. Blank lines
// are kept, including one that opens a chunk; a chunk of nothing but blank
// lines is dropped.
func Split(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	open := false
	flush := func() {
		if open && strings.Trim(cur.String(), "\n") != "" {
			chunks = append(chunks, cur.String())
		}
		cur.Reset()
		open = false
	}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > max {
			flush()
			cut := max
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if open && cur.Len()+1+len(line) > max {
			flush()
		}
		if open {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		open = true
	}
	flush()
	return chunks
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func roomTitle(t string) string {
	return orDefault(t, "Unknown chat")
}

func orUnknown(s string) string { return orDefault(s, "Unknown") }

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
