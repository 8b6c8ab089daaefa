package recipes

import "encoding/json"

// PlaceholderImage is used when a recipe has no resolvable image.
const PlaceholderImage = "/placeholder.svg"

// DefaultDifficulty is reported when a recipe does not set one.
const DefaultDifficulty = "Easy"

// Recipe is the flattened view of a recipe node.
type Recipe struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Summary      string   `json:"summary" yaml:"summary"`
	Image        string   `json:"image" yaml:"image"`
	CookingTime  int      `json:"cookingTime" yaml:"cookingTime"`
	Difficulty   string   `json:"difficulty" yaml:"difficulty"`
	Ingredients  []string `json:"ingredients" yaml:"ingredients"`
	Instructions []string `json:"instructions" yaml:"instructions"`
	Category     string   `json:"category" yaml:"category"`
	Featured     bool     `json:"featured" yaml:"featured"`
	Path         string   `json:"path" yaml:"path"`
}

// Pagination describes one page of a recipe listing.
type Pagination struct {
	CurrentPage int `json:"currentPage" yaml:"currentPage"`
	TotalPages  int `json:"totalPages" yaml:"totalPages"`
	PageSize    int `json:"pageSize" yaml:"pageSize"`
	TotalItems  int `json:"totalItems" yaml:"totalItems"`
}

// Page is a page of recipes.
type Page struct {
	Recipes    []Recipe   `json:"recipes" yaml:"recipes"`
	Pagination Pagination `json:"pagination" yaml:"pagination"`
}

// Resource is a JSON:API resource object.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    json.RawMessage         `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship holds resource linkage. Data is a single identifier, an
// array of identifiers or null.
type Relationship struct {
	Data json.RawMessage `json:"data"`
}

// Identifier is a JSON:API resource identifier.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// First returns the first identifier in the linkage.
func (r Relationship) First() (Identifier, bool) {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return Identifier{}, false
	}
	var one Identifier
	if err := json.Unmarshal(r.Data, &one); err == nil && one.ID != "" {
		return one, true
	}
	var many []Identifier
	if err := json.Unmarshal(r.Data, &many); err == nil && len(many) > 0 {
		return many[0], true
	}
	return Identifier{}, false
}

// collectionDocument is a JSON:API top-level document with array data.
type collectionDocument struct {
	Data     []Resource      `json:"data"`
	Included []Resource      `json:"included,omitempty"`
	Meta     documentMeta    `json:"meta,omitempty"`
	Links    map[string]link `json:"links,omitempty"`
}

// singleDocument is a JSON:API top-level document with a single resource.
type singleDocument struct {
	Data     Resource   `json:"data"`
	Included []Resource `json:"included,omitempty"`
}

type documentMeta struct {
	Count *int `json:"count,omitempty"`
}

type link struct {
	Href string `json:"href"`
}

// recipeAttributes mirrors the node--recipe attributes the client reads.
type recipeAttributes struct {
	Title        string          `json:"title"`
	Summary      json.RawMessage `json:"field_summary"`
	CookingTime  int             `json:"field_cooking_time"`
	Difficulty   string          `json:"field_difficulty"`
	Ingredients  []string        `json:"field_ingredients"`
	Instructions json.RawMessage `json:"field_instructions"`
	Category     string          `json:"field_recipe_category"`
	Featured     bool            `json:"field_featured"`
	Path         *struct {
		Alias string `json:"alias"`
	} `json:"path"`
}

type fileAttributes struct {
	URI struct {
		URL string `json:"url"`
	} `json:"uri"`
}
