package mock

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// RecipeFixture seeds one node--recipe in the mock JSON:API.
type RecipeFixture struct {
	ID           string
	Title        string
	Summary      string
	CookingTime  int
	Difficulty   string
	Ingredients  []string
	Instructions string // formatted text, as stored in Drupal
	Category     string
	Featured     bool
	Alias        string
	ImagePath    string // file uri.url; empty means no image
}

// DefaultRecipes returns the fixtures used when none are configured,
// newest first.
func DefaultRecipes() []RecipeFixture {
	return []RecipeFixture{
		{
			ID:           "7f1c0d2e-0001-4a5b-9c1d-000000000001",
			Title:        "Spaghetti Carbonara",
			Summary:      "A classic Italian pasta dish with eggs, cheese, pancetta, and black pepper.",
			CookingTime:  30,
			Difficulty:   "Medium",
			Ingredients:  []string{"400g spaghetti", "200g pancetta", "4 large eggs", "100g Pecorino Romano"},
			Instructions: "<ol><li>Boil the pasta.</li><li>Crisp the pancetta.</li><li>Toss with eggs &amp; cheese.</li></ol>",
			Category:     "dinner",
			Featured:     true,
			Alias:        "/recipes/spaghetti-carbonara",
			ImagePath:    "/sites/default/files/carbonara.jpg",
		},
		{
			ID:           "7f1c0d2e-0002-4a5b-9c1d-000000000002",
			Title:        "Cacio e Pepe",
			Summary:      "A simple Roman pasta dish with cheese and black pepper.",
			CookingTime:  20,
			Ingredients:  []string{"200g tonnarelli", "100g Pecorino Romano", "2 tsp black pepper"},
			Instructions: "<p>Toast the pepper.</p><p>Emulsify cheese with pasta water.</p>",
			Category:     "dinner",
			Featured:     true,
			Alias:        "/recipes/cacio-e-pepe",
		},
		{
			ID:           "7f1c0d2e-0003-4a5b-9c1d-000000000003",
			Title:        "Breakfast Smoothie Bowl",
			Summary:      "A colorful bowl packed with fruits, berries, and toppings.",
			CookingTime:  10,
			Difficulty:   "Easy",
			Ingredients:  []string{"1 frozen banana", "1 cup frozen berries"},
			Instructions: "Blend the fruit.\nTop and serve.",
			Category:     "breakfast",
			Alias:        "/recipes/smoothie-bowl",
			ImagePath:    "/sites/default/files/smoothie.jpg",
		},
	}
}

func (s *DrupalServer) handleRecipeCollection(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	query := r.URL.Query()

	var matched []RecipeFixture
	for _, fixture := range s.config.Recipes {
		if query.Get("filter[field_featured]") == "1" && !fixture.Featured {
			continue
		}
		matched = append(matched, fixture)
	}
	total := len(matched)

	offset, _ := strconv.Atoi(query.Get("page[offset]"))
	limit, err := strconv.Atoi(query.Get("page[limit]"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[offset:end]

	includeImages := strings.Contains(query.Get("include"), "field_recipe_image")
	data := make([]map[string]interface{}, 0, len(page))
	included := make([]map[string]interface{}, 0)
	for _, fixture := range page {
		data = append(data, recipeResource(fixture))
		if includeImages {
			included = append(included, imageResources(fixture)...)
		}
	}

	doc := map[string]interface{}{
		"jsonapi": map[string]string{"version": "1.0"},
		"data":    data,
		"links":   map[string]interface{}{"self": map[string]string{"href": r.URL.String()}},
	}
	if includeImages {
		doc["included"] = included
	}
	if s.config.ReportCount {
		doc["meta"] = map[string]int{"count": total}
	}
	if end < total {
		doc["links"].(map[string]interface{})["next"] = map[string]string{"href": "next"}
	}

	w.Header().Set("Content-Type", "application/vnd.api+json")
	writeJSON(w, http.StatusOK, doc)
}

func (s *DrupalServer) handleRecipe(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	id := r.PathValue("id")
	for _, fixture := range s.config.Recipes {
		if fixture.ID != id {
			continue
		}
		doc := map[string]interface{}{"data": recipeResource(fixture)}
		if strings.Contains(r.URL.Query().Get("include"), "field_recipe_image") {
			doc["included"] = imageResources(fixture)
		}
		writeJSON(w, http.StatusOK, doc)
		return
	}
	writeJSON(w, http.StatusNotFound, jsonAPIError(http.StatusNotFound, "The requested resource does not exist."))
}

// handleRecipeCreate accepts a new node. Session callers must present the
// current CSRF token, as Drupal requires for unsafe methods.
func (s *DrupalServer) handleRecipeCreate(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authorize(w, r)
	if !ok {
		return
	}
	if session == nil && bearerToken(r) == "" {
		writeJSON(w, http.StatusUnauthorized, jsonAPIError(http.StatusUnauthorized, "authentication required"))
		return
	}
	if session != nil && bearerToken(r) == "" && r.Header.Get("X-CSRF-Token") != session.csrfToken {
		writeJSON(w, http.StatusForbidden, jsonAPIError(http.StatusForbidden, "X-CSRF-Token request header is invalid"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		writeJSON(w, http.StatusUnprocessableEntity, jsonAPIError(http.StatusUnprocessableEntity, "invalid document"))
		return
	}

	s.mu.Lock()
	s.created = append(s.created, json.RawMessage(body))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func recipeResource(f RecipeFixture) map[string]interface{} {
	attributes := map[string]interface{}{
		"title":                 f.Title,
		"field_summary":         map[string]string{"value": f.Summary, "format": "basic_html"},
		"field_cooking_time":    f.CookingTime,
		"field_ingredients":     f.Ingredients,
		"field_instructions":    map[string]string{"value": f.Instructions, "format": "basic_html"},
		"field_recipe_category": f.Category,
		"field_featured":        f.Featured,
		"path":                  map[string]string{"alias": f.Alias},
	}
	if f.Difficulty != "" {
		attributes["field_difficulty"] = f.Difficulty
	}

	var imageData interface{}
	if f.ImagePath != "" {
		imageData = map[string]string{"type": "media--image", "id": mediaID(f)}
	}

	return map[string]interface{}{
		"type":       "node--recipe",
		"id":         f.ID,
		"attributes": attributes,
		"relationships": map[string]interface{}{
			"field_recipe_image": map[string]interface{}{"data": imageData},
		},
	}
}

func imageResources(f RecipeFixture) []map[string]interface{} {
	if f.ImagePath == "" {
		return nil
	}
	return []map[string]interface{}{
		{
			"type": "media--image",
			"id":   mediaID(f),
			"relationships": map[string]interface{}{
				"field_media_image": map[string]interface{}{
					"data": map[string]string{"type": "file--file", "id": fileID(f)},
				},
			},
		},
		{
			"type":       "file--file",
			"id":         fileID(f),
			"attributes": map[string]interface{}{"uri": map[string]string{"url": f.ImagePath}},
		},
	}
}

func mediaID(f RecipeFixture) string { return "media-" + f.ID }
func fileID(f RecipeFixture) string  { return "file-" + f.ID }
