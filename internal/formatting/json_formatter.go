package formatting

import (
	"encoding/json"
	"fmt"

	"recipebox/internal/recipes"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) *JSONFormatter {
	return &JSONFormatter{options: options}
}

// Options returns the formatter options.
func (f *JSONFormatter) Options() Options {
	return f.options
}

// FormatRecipes prints a bare array, or a page object when pagination is set.
func (f *JSONFormatter) FormatRecipes(list []recipes.Recipe, pagination *recipes.Pagination) error {
	if list == nil {
		list = []recipes.Recipe{}
	}
	if pagination != nil {
		return f.write(recipes.Page{Recipes: list, Pagination: *pagination})
	}
	return f.write(list)
}

func (f *JSONFormatter) FormatRecipe(recipe recipes.Recipe) error {
	return f.write(recipe)
}

func (f *JSONFormatter) FormatStatus(status Status) error {
	return f.write(status)
}

func (f *JSONFormatter) FormatIdentity(identity Identity) error {
	return f.write(identity)
}

func (f *JSONFormatter) write(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(f.options.Out, string(data))
	return err
}
