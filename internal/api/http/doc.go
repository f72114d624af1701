// Package http contains the gin handlers for the users API and the
// companion external service.
//
// Handlers do not open spans of their own. They annotate the SERVER span
// that the lifecycle middleware stored in the request context, e.g. a
// missing user marks it ERROR with "User not found".
//
// Routes:
//
//	GET  /api/users                 ListUsers
//	GET  /api/users/:id             GetUser (404 when missing)
//	POST /api/users                 CreateUser (201)
//	GET  /health                    HealthHandler
//	GET  /api/external/user/:id     ExternalHandlers.GetUserData
//	GET  /api/external/health       ExternalHandlers.Health
package http
