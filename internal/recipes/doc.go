// Package recipes reads recipe nodes from the Drupal JSON:API and turns
// them into flat Recipe values.
//
// Every request goes through the HTTP client handed to NewClient; in the
// CLI that is the authenticated pipeline from the auth package, so the
// client itself never deals with credentials.
package recipes
