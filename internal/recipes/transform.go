package recipes

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// blockElements end a step.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "br": true,
	"ol": true, "ul": true, "blockquote": true, "pre": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// rawTextElements never contribute text.
var rawTextElements = map[string]bool{"script": true, "style": true}

// ToRecipe flattens a node--recipe resource. included is the compound
// document's included list, used to resolve the image; baseURL prefixes
// the file path.
func ToRecipe(node Resource, included []Resource, baseURL string) (Recipe, error) {
	var attrs recipeAttributes
	if len(node.Attributes) > 0 {
		if err := json.Unmarshal(node.Attributes, &attrs); err != nil {
			return Recipe{}, fmt.Errorf("failed to parse recipe %s: %w", node.ID, err)
		}
	}

	recipe := Recipe{
		ID:           node.ID,
		Title:        attrs.Title,
		Summary:      textValue(attrs.Summary),
		Image:        resolveImage(node, included, baseURL),
		CookingTime:  attrs.CookingTime,
		Difficulty:   attrs.Difficulty,
		Ingredients:  attrs.Ingredients,
		Instructions: instructionSteps(attrs.Instructions),
		Category:     attrs.Category,
		Featured:     attrs.Featured,
	}
	if recipe.Difficulty == "" {
		recipe.Difficulty = DefaultDifficulty
	}
	if recipe.Ingredients == nil {
		recipe.Ingredients = []string{}
	}
	if attrs.Path != nil {
		recipe.Path = attrs.Path.Alias
	}
	return recipe, nil
}

// resolveImage follows field_recipe_image -> media -> field_media_image ->
// file uri.url.
func resolveImage(node Resource, included []Resource, baseURL string) string {
	mediaRef, ok := node.Relationships["field_recipe_image"].First()
	if !ok {
		return PlaceholderImage
	}
	media, ok := findIncluded(included, mediaRef)
	if !ok {
		return PlaceholderImage
	}
	fileRef, ok := media.Relationships["field_media_image"].First()
	if !ok {
		return PlaceholderImage
	}
	file, ok := findIncluded(included, fileRef)
	if !ok {
		return PlaceholderImage
	}

	var attrs fileAttributes
	if err := json.Unmarshal(file.Attributes, &attrs); err != nil || attrs.URI.URL == "" {
		return PlaceholderImage
	}
	if strings.HasPrefix(attrs.URI.URL, "http://") || strings.HasPrefix(attrs.URI.URL, "https://") {
		return attrs.URI.URL
	}
	return strings.TrimSuffix(baseURL, "/") + attrs.URI.URL
}

func findIncluded(included []Resource, ref Identifier) (Resource, bool) {
	for _, res := range included {
		if res.ID == ref.ID && (ref.Type == "" || res.Type == ref.Type) {
			return res, true
		}
	}
	return Resource{}, false
}

// textValue reads a Drupal text field, which is either a plain string or
// an object with value/processed keys.
func textValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var field struct {
		Value     string `json:"value"`
		Processed string `json:"processed"`
	}
	if json.Unmarshal(raw, &field) == nil {
		if field.Value != "" {
			return field.Value
		}
		return field.Processed
	}
	return ""
}

// instructionSteps accepts a list of strings, a list of text fields or a
// single formatted text field, and splits formatted text into steps.
func instructionSteps(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}
	}

	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		steps := []string{}
		for _, item := range list {
			steps = append(steps, splitSteps(textValue(item))...)
		}
		return steps
	}
	return splitSteps(textValue(raw))
}

// splitSteps extracts the text of a formatted field, one step per block
// element or line. Comments and script content are dropped and entities
// are decoded.
func splitSteps(text string) []string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	skip := 0

tokens:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			break tokens
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case rawTextElements[tag] && tt == html.StartTagToken:
				skip++
			case rawTextElements[tag] && tt == html.EndTagToken && skip > 0:
				skip--
			case blockElements[tag]:
				b.WriteByte('\n')
			}
		}
	}

	steps := []string{}
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			steps = append(steps, line)
		}
	}
	return steps
}
