// Package headers generates browser-like HTTP request headers.
//
// Every call to Generator.Random picks a user agent, an Accept-Language
// preference, an Accept value and a referer at random, so that
// consecutive crawls of a site do not share one fingerprint.
package headers
