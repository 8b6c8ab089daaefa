package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"recipebox/internal/auth"
	"recipebox/pkg/logging"
)

const (
	// DefaultPageSize matches the page size of the recipe listing.
	DefaultPageSize = 9

	// DefaultFeaturedLimit is the number of featured recipes returned.
	DefaultFeaturedLimit = 6

	recipeResource = "/node/recipe"
	imageInclude   = "field_recipe_image.field_media_image"
)

// Client reads recipes from the JSON:API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	baseURL    string
}

// NewClient creates a client. apiURL is the JSON:API root; baseURL is
// used to make file URLs absolute.
func NewClient(httpClient *http.Client, apiURL, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// List returns one page of recipes, newest first. page is 1-based.
func (c *Client) List(ctx context.Context, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	offset := (page - 1) * pageSize

	query := imageQuery()
	query.Set("page[limit]", strconv.Itoa(pageSize))
	query.Set("page[offset]", strconv.Itoa(offset))
	query.Set("sort", "-created")

	var doc collectionDocument
	if err := c.get(ctx, recipeResource, query, &doc); err != nil {
		return nil, err
	}

	recipes, err := c.toRecipes(doc.Data, doc.Included)
	if err != nil {
		return nil, err
	}

	return &Page{
		Recipes:    recipes,
		Pagination: paginate(page, pageSize, offset, len(doc.Data), doc),
	}, nil
}

// Featured returns up to limit featured recipes, newest first.
func (c *Client) Featured(ctx context.Context, limit int) ([]Recipe, error) {
	if limit < 1 {
		limit = DefaultFeaturedLimit
	}

	query := imageQuery()
	query.Set("filter[field_featured]", "1")
	query.Set("page[limit]", strconv.Itoa(limit))
	query.Set("sort", "-created")

	var doc collectionDocument
	if err := c.get(ctx, recipeResource, query, &doc); err != nil {
		return nil, err
	}
	return c.toRecipes(doc.Data, doc.Included)
}

// Get returns the recipe with the given UUID, or nil when it does not exist.
func (c *Client) Get(ctx context.Context, id string) (*Recipe, error) {
	if id == "" {
		return nil, fmt.Errorf("recipe id is required")
	}

	var doc singleDocument
	err := c.get(ctx, recipeResource+"/"+url.PathEscape(id), imageQuery(), &doc)
	if auth.StatusCode(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	recipe, err := ToRecipe(doc.Data, doc.Included, c.baseURL)
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (c *Client) toRecipes(nodes, included []Resource) ([]Recipe, error) {
	recipes := make([]Recipe, 0, len(nodes))
	for _, node := range nodes {
		recipe, err := ToRecipe(node, included, c.baseURL)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.apiURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Error("Recipes", err, "Request to %s failed", path)
		return fmt.Errorf("recipe request failed: %w", err)
	}
	if err := auth.CheckResponse(resp); err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse JSON:API response: %w", err)
	}
	return nil
}

func imageQuery() url.Values {
	return url.Values{
		"include":              {imageInclude},
		"fields[media--image]": {"field_media_image"},
		"fields[file--file]":   {"uri"},
	}
}

// paginate derives totals from meta.count when the backend reports it and
// from the presence of a next link otherwise.
func paginate(page, pageSize, offset, returned int, doc collectionDocument) Pagination {
	p := Pagination{CurrentPage: page, PageSize: pageSize}

	if doc.Meta.Count != nil {
		p.TotalItems = *doc.Meta.Count
		p.TotalPages = (p.TotalItems + pageSize - 1) / pageSize
		return p
	}

	p.TotalItems = offset + returned
	p.TotalPages = page
	if _, ok := doc.Links["next"]; ok {
		p.TotalPages = page + 1
	}
	return p
}
