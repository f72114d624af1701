// Package downstream traces outbound HTTP calls to other services.
//
// Each call becomes a CLIENT span named call_<service>_service carrying
// http.method, http.url, http.status_code and response.success. Failures
// are recorded on the span and reported as a degraded Response rather than
// an error.
package downstream
