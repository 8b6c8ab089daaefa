// Package mock provides test doubles for the Drupal backend.
//
// DrupalServer is an httptest server implementing the endpoints recipebox
// talks to:
//
//	GET  /oauth/authorize     auto-approves and redirects with code and state
//	POST /oauth/token         authorization_code and refresh_token grants
//	GET  /oauth/userinfo      bearer-protected profile
//	POST /user/login          JSON session login, sets a SESS* cookie
//	GET  /session/token       issues a fresh CSRF token for the session
//	GET  /user/me             session-protected profile (Drupal entity shape)
//	GET  /user/logout         bearer or session logout
//	GET  /jsonapi/node/recipe recipe collection with includes and paging
//
// Tests drive failure paths with FailNext, RevokeAccessTokens, RotateCSRF
// and friends, and assert on traffic with Calls and LastHeaders.
//
// MockClock lets tests move time forward without sleeping.
package mock
