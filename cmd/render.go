package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kurtheiz/agistme/pkg/listing"
	"github.com/kurtheiz/agistme/pkg/loader"
	"github.com/kurtheiz/agistme/pkg/search"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 1, 0)

	listingStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	priceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32"))

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	tokenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Margin(1, 0, 0, 0)
)

var titleCase = cases.Title(language.English)

// humanize turns enum values such as "hot_wash" into "Hot Wash".
func humanize(s string) string {
	return titleCase.String(strings.ReplaceAll(s, "_", " "))
}

// describeCriteria renders the active filters on one line.
func describeCriteria(c search.Criteria) string {
	var parts []string
	for _, loc := range c.Locations {
		parts = append(parts, loc.Label())
	}
	if c.RadiusApplies() {
		parts = append(parts, fmt.Sprintf("within %dkm", c.RadiusKm))
	}
	join := func(label string, values []string) {
		if len(values) == 0 {
			return
		}
		for i, v := range values {
			values[i] = humanize(v)
		}
		parts = append(parts, label+": "+strings.Join(values, ", "))
	}
	join("paddock", enumStrings(c.PaddockTypes))
	join("care", enumStrings(c.CareTypes))
	join("facilities", enumStrings(c.Facilities))
	switch {
	case c.HasOpenEndedPrice():
		parts = append(parts, fmt.Sprintf("$%d+/week", search.MaxPriceSentinel))
	case c.MaxWeeklyPrice > 0:
		parts = append(parts, fmt.Sprintf("up to $%d/week", c.MaxWeeklyPrice))
	}
	if c.MinSpaces > 0 {
		parts = append(parts, fmt.Sprintf("%d+ spaces", c.MinSpaces))
	}
	if c.HasArena {
		parts = append(parts, "arena")
	}
	if c.HasRoundYard {
		parts = append(parts, "round yard")
	}
	if len(parts) == 0 {
		return "All agistment"
	}
	return strings.Join(parts, " · ")
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// formatPrice renders a computed weekly price.
func formatPrice(price int) string {
	if price == listing.ContactForPrice {
		return "Contact for price"
	}
	return fmt.Sprintf("from $%d/week", price)
}

// formatResults renders a search view for the terminal.
func formatResults(v loader.View, title string) string {
	var output strings.Builder

	output.WriteString(titleStyle.Render(title))
	output.WriteString("\n")
	output.WriteString(headerStyle.Render(describeCriteria(v.Criteria)))
	output.WriteString("\n")

	if v.Recovered {
		output.WriteString(warnStyle.Render("The search link could not be read; showing all agistment instead."))
		output.WriteString("\n")
	}

	if len(v.Items) == 0 {
		output.WriteString(noDataStyle.Render("No agistment matches this search."))
		output.WriteString("\n")
	}

	scope := v.Criteria.PriceScope()
	for _, l := range v.Items {
		output.WriteString(renderListing(l, scope))
		output.WriteString("\n")
	}

	more := "more available, run `agistme more`"
	if v.Exhausted {
		more = "end of results"
	}
	summary := fmt.Sprintf("%d listings, sorted by %s (%s)", len(v.Items), humanize(string(v.SortMode)), more)
	output.WriteString(summaryStyle.Render(summary))
	output.WriteString("\n")
	output.WriteString(tokenStyle.Render("Share: " + v.Token))
	output.WriteString("\n")

	return output.String()
}

func renderListing(l listing.Listing, scope []search.PaddockType) string {
	var content strings.Builder

	content.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Render(l.Name))
	content.WriteString("  ")
	content.WriteString(priceStyle.Render(formatPrice(l.MinWeeklyPrice(scope))))
	content.WriteString("\n")

	place := strings.TrimSpace(fmt.Sprintf("%s %s, %s", humanize(strings.ToLower(l.Suburb)), l.Postcode, l.State))
	content.WriteString(place)
	if lat, lng, ok := l.Location().Center(); ok {
		content.WriteString(metaStyle.Render(fmt.Sprintf("  (%.4f, %.4f)", lat, lng)))
	}
	content.WriteString("\n")

	var paddocks []string
	for p, offer := range l.Paddocks {
		if offer.Total <= 0 {
			continue
		}
		paddocks = append(paddocks, fmt.Sprintf("%s %d/%d free", humanize(string(p)), offer.Available, offer.Total))
	}
	sort.Strings(paddocks)
	if len(paddocks) > 0 {
		content.WriteString(strings.Join(paddocks, " · "))
		content.WriteString("\n")
	}

	var meta []string
	for _, care := range l.CareTypes {
		meta = append(meta, humanize(string(care))+" care")
	}
	for _, f := range l.Facilities {
		meta = append(meta, humanize(string(f)))
	}
	if l.HasArena {
		meta = append(meta, "Arena")
	}
	if l.HasRoundYard {
		meta = append(meta, "Round Yard")
	}
	meta = append(meta, "id "+l.ID)
	content.WriteString(metaStyle.Render(strings.Join(meta, " · ")))

	return listingStyle.Render(content.String())
}

// printOutput writes content through a pager when stdout is a terminal.
func printOutput(content string, noPager bool) error {
	if noPager || !isTerminal() {
		fmt.Print(content)
		return nil
	}
	return displayWithPager(content)
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

func displayWithPager(content string) error {
	pagerCmd := os.Getenv("PAGER")
	if pagerCmd == "" {
		for _, pager := range []string{"less", "more", "cat"} {
			if _, err := exec.LookPath(pager); err == nil {
				pagerCmd = pager
				break
			}
		}
	}

	if pagerCmd == "" {
		fmt.Print(content)
		return nil
	}

	args := []string{}
	if strings.Contains(pagerCmd, "less") {
		args = []string{"-R", "-S", "-F", "-X"}
	}

	cmd := exec.Command(pagerCmd, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
