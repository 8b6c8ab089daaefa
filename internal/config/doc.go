// Package config loads recipebox configuration.
//
// Configuration lives in a single directory, ~/.config/recipebox by default
// or whatever --config-path points at. The directory holds config.yaml and,
// for the file credential backend, the credentials file.
//
// Loading happens in three layers, each overriding the previous one:
//
//  1. GetDefaultConfig()
//  2. config.yaml, if present
//  3. environment variables (optionally read from a .env file)
//
// The environment variables mirror the settings a browser front end would
// get from its build environment:
//
//	DRUPAL_BASE_URL       drupal.baseURL
//	DRUPAL_API_URL        drupal.apiURL
//	DRUPAL_CLIENT_ID      oauth.clientID
//	DRUPAL_CLIENT_SECRET  oauth.clientSecret
//	RECIPEBOX_STORE       credentials.backend
//	RECIPEBOX_REDIS_ADDR  credentials.redis.addr
package config
