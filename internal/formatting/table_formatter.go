package formatting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"recipebox/internal/recipes"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxSummaryWidth truncates summaries in wide listings.
const maxSummaryWidth = 60

// TableFormatter provides kubectl-style table output.
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) *TableFormatter {
	return &TableFormatter{options: options}
}

// Options returns the formatter options.
func (f *TableFormatter) Options() Options {
	return f.options
}

func (f *TableFormatter) wide() bool {
	return f.options.Format == FormatWide
}

// FormatRecipes lists recipes one per row.
func (f *TableFormatter) FormatRecipes(list []recipes.Recipe, pagination *recipes.Pagination) error {
	if len(list) == 0 {
		fmt.Fprintln(f.options.Out, f.colorize(text.FgYellow, "No recipes found"))
		return nil
	}

	t := f.createTable()
	header := table.Row{"ID", "TITLE", "DIFFICULTY", "TIME", "FEATURED"}
	if f.wide() {
		header = append(header, "CATEGORY", "SUMMARY", "IMAGE")
	}
	if !f.options.NoHeaders {
		t.AppendHeader(header)
	}

	for _, recipe := range list {
		row := table.Row{
			recipe.ID,
			recipe.Title,
			recipe.Difficulty,
			formatMinutes(recipe.CookingTime),
			f.formatFeatured(recipe.Featured),
		}
		if f.wide() {
			row = append(row, recipe.Category, truncate(recipe.Summary, maxSummaryWidth), recipe.Image)
		}
		t.AppendRow(row)
	}
	t.Render()

	if pagination != nil && !f.options.NoHeaders {
		fmt.Fprintf(f.options.Out, "\nPage %d of %d (%d recipes)\n",
			pagination.CurrentPage, pagination.TotalPages, pagination.TotalItems)
	}
	return nil
}

// FormatRecipe prints one recipe with its ingredients and steps.
func (f *TableFormatter) FormatRecipe(recipe recipes.Recipe) error {
	out := f.options.Out
	fmt.Fprintln(out, f.colorize(text.Bold, recipe.Title))
	if recipe.Summary != "" {
		fmt.Fprintln(out, recipe.Summary)
	}
	fmt.Fprintln(out)

	t := f.createTable()
	t.AppendRows([]table.Row{
		{"ID:", recipe.ID},
		{"Difficulty:", recipe.Difficulty},
		{"Cooking time:", formatMinutes(recipe.CookingTime)},
		{"Category:", valueOrDash(recipe.Category)},
		{"Featured:", f.formatFeatured(recipe.Featured)},
		{"Image:", recipe.Image},
	})
	if recipe.Path != "" {
		t.AppendRow(table.Row{"Path:", recipe.Path})
	}
	t.Render()

	fmt.Fprintln(out)
	fmt.Fprintln(out, f.colorize(text.FgHiCyan, "Ingredients"))
	if len(recipe.Ingredients) == 0 {
		fmt.Fprintln(out, "  -")
	}
	for _, ingredient := range recipe.Ingredients {
		fmt.Fprintf(out, "  - %s\n", ingredient)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, f.colorize(text.FgHiCyan, "Instructions"))
	if len(recipe.Instructions) == 0 {
		fmt.Fprintln(out, "  -")
	}
	for i, step := range recipe.Instructions {
		fmt.Fprintf(out, "  %d. %s\n", i+1, step)
	}
	return nil
}

// FormatStatus prints the authentication state as aligned key/value rows.
func (f *TableFormatter) FormatStatus(status Status) error {
	t := f.createTable()
	t.AppendRow(table.Row{"Backend:", status.BaseURL})

	if status.Authenticated {
		t.AppendRow(table.Row{"Status:", f.colorize(text.FgGreen, "Authenticated")})
	} else {
		t.AppendRow(table.Row{"Status:", f.colorize(text.FgYellow, "Not authenticated")})
	}
	if status.Method != "" {
		t.AppendRow(table.Row{"Method:", status.Method})
	}
	if status.User != "" {
		t.AppendRow(table.Row{"User:", status.User})
	}

	oauth := f.colorize(text.FgHiBlack, "No token")
	if status.OAuthValid {
		oauth = f.colorize(text.FgGreen, "Valid")
	} else if status.ExpiresAt != nil {
		oauth = f.colorize(text.FgYellow, "Expired")
	}
	t.AppendRow(table.Row{"OAuth:", oauth})
	if status.ExpiresAt != nil {
		t.AppendRow(table.Row{"Expires:", f.formatExpiry(*status.ExpiresAt)})
	}
	if status.RefreshToken {
		t.AppendRow(table.Row{"Refresh:", f.colorize(text.FgGreen, "Available")})
	} else {
		t.AppendRow(table.Row{"Refresh:", f.colorize(text.FgYellow, "Not available (re-auth required on expiry)")})
	}

	session := f.colorize(text.FgHiBlack, "None")
	switch {
	case status.SessionVerified != nil && !*status.SessionVerified:
		session = f.colorize(text.FgYellow, "Rejected by server")
	case status.SessionValid && status.SessionVerified != nil:
		session = f.colorize(text.FgGreen, "Active (verified)")
	case status.SessionValid:
		session = f.colorize(text.FgGreen, "Active")
	}
	t.AppendRow(table.Row{"Session:", session})

	t.Render()
	return nil
}

// FormatIdentity prints the authenticated user.
func (f *TableFormatter) FormatIdentity(identity Identity) error {
	t := f.createTable()
	name := identity.Name
	if identity.Email != "" {
		name = fmt.Sprintf("%s <%s>", identity.Name, identity.Email)
	}
	t.AppendRows([]table.Row{
		{"Identity:", name},
		{"User ID:", valueOrDash(identity.ID)},
		{"Method:", identity.Method},
	})
	t.Render()
	return nil
}

// createTable creates a borderless table writing to the configured output.
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Out)
	style := table.StyleDefault
	style.Options = table.OptionsNoBordersAndSeparators
	style.Box.PaddingLeft = ""
	style.Box.PaddingRight = "   "
	style.Format.Header = text.FormatUpper
	t.SetStyle(style)
	return t
}

func (f *TableFormatter) colorize(color text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return color.Sprint(s)
}

func (f *TableFormatter) formatFeatured(featured bool) string {
	if featured {
		return f.colorize(text.FgGreen, "yes")
	}
	return "no"
}

func (f *TableFormatter) formatExpiry(expiresAt time.Time) string {
	expiry := FormatExpiry(expiresAt)
	if strings.HasPrefix(expiry, "expired") {
		return f.colorize(text.FgYellow, expiry)
	}
	return expiry
}

func formatMinutes(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	return strconv.Itoa(minutes) + " min"
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
