// Package auth implements client-side authentication against a Drupal
// backend that accepts two mechanisms: OAuth2 bearer tokens from the
// simple_oauth module and cookie sessions protected by a CSRF token.
//
// Client owns the endpoint calls (authorization URL, code exchange, token
// refresh, session login, CSRF refresh and logout) and persists every
// credential through a credentials.Store; it keeps no auth state of its
// own. Inspector answers whether the stored credentials are usable without
// touching the network. Authenticator resolves the two mechanisms into one
// authenticated user, preferring OAuth, and Transport applies that state to
// outgoing requests:
//
//	client := auth.NewClient(store, auth.Config{BaseURL: baseURL, ClientID: id})
//	authenticator := auth.NewAuthenticator(client)
//	httpClient := auth.NewHTTPClient(authenticator, nil)
//
// A request rejected with 401 while carrying a bearer token is retried once
// after a token refresh; a request rejected with 403 while carrying a
// session is retried once after a CSRF refresh. Concurrent refreshes share
// a single backend call.
package auth
