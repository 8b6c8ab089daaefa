// Package formatting renders recipebox command output as plain tables,
// wide tables, JSON or YAML.
package formatting

import (
	"fmt"
	"io"
	"os"
	"time"

	"recipebox/internal/recipes"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // kubectl-style plain table
	FormatWide  OutputFormat = "wide"  // table with additional columns
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ValidFormats lists every accepted --output value.
var ValidFormats = []OutputFormat{FormatTable, FormatWide, FormatJSON, FormatYAML}

// ValidateFormat returns an error naming the valid formats when format is
// not one of them.
func ValidateFormat(format string) error {
	for _, valid := range ValidFormats {
		if OutputFormat(format) == valid {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format: %q (valid: table, wide, json, yaml)", format)
}

// Options configures the formatter behavior
type Options struct {
	Format    OutputFormat
	NoHeaders bool      // Suppress the table header row
	Color     bool      // Enable colored output
	Out       io.Writer // Defaults to os.Stdout
}

// Status is the printable authentication state.
type Status struct {
	BaseURL         string     `json:"baseUrl" yaml:"baseUrl"`
	Authenticated   bool       `json:"authenticated" yaml:"authenticated"`
	Method          string     `json:"method" yaml:"method"`
	User            string     `json:"user,omitempty" yaml:"user,omitempty"`
	OAuthValid      bool       `json:"oauthValid" yaml:"oauthValid"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	RefreshToken    bool       `json:"refreshTokenAvailable" yaml:"refreshTokenAvailable"`
	SessionValid    bool       `json:"sessionValid" yaml:"sessionValid"`
	SessionVerified *bool      `json:"sessionVerified,omitempty" yaml:"sessionVerified,omitempty"`
}

// Identity is the printable authenticated user.
type Identity struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Email  string `json:"email,omitempty" yaml:"email,omitempty"`
	Method string `json:"method" yaml:"method"`
}

// Formatter renders command results.
type Formatter interface {
	// FormatRecipes renders a recipe listing. pagination may be nil.
	FormatRecipes(list []recipes.Recipe, pagination *recipes.Pagination) error
	FormatRecipe(recipe recipes.Recipe) error
	FormatStatus(status Status) error
	FormatIdentity(identity Identity) error

	Options() Options
}

// New creates the formatter for options.Format.
func New(options Options) (Formatter, error) {
	if options.Format == "" {
		options.Format = FormatTable
	}
	if err := ValidateFormat(string(options.Format)); err != nil {
		return nil, err
	}
	if options.Out == nil {
		options.Out = os.Stdout
	}

	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options), nil
	case FormatYAML:
		return NewYAMLFormatter(options), nil
	default:
		return NewTableFormatter(options), nil
	}
}
