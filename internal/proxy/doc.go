// Package proxy forwards a single HTTP request to a resolved upstream
// target and normalizes the response. Transport failures are classified
// into typed errors; everything the upstream answers, whatever the
// status, becomes a Response.
package proxy
