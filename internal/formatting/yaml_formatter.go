package formatting

import (
	"fmt"

	"recipebox/internal/recipes"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) *YAMLFormatter {
	return &YAMLFormatter{options: options}
}

// Options returns the formatter options.
func (f *YAMLFormatter) Options() Options {
	return f.options
}

func (f *YAMLFormatter) FormatRecipes(list []recipes.Recipe, pagination *recipes.Pagination) error {
	if list == nil {
		list = []recipes.Recipe{}
	}
	if pagination != nil {
		return f.write(recipes.Page{Recipes: list, Pagination: *pagination})
	}
	return f.write(list)
}

func (f *YAMLFormatter) FormatRecipe(recipe recipes.Recipe) error {
	return f.write(recipe)
}

func (f *YAMLFormatter) FormatStatus(status Status) error {
	return f.write(status)
}

func (f *YAMLFormatter) FormatIdentity(identity Identity) error {
	return f.write(identity)
}

func (f *YAMLFormatter) write(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to convert to YAML: %w", err)
	}
	_, err = f.options.Out.Write(data)
	return err
}
