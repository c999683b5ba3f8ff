// Package main provides the entry point for the tenantauth service.
// It initializes and runs a web server using the Fiber framework that
// exposes multi-tenant authentication over a REST API: password, LDAP
// and OAuth logins, JWT access tokens with rotating refresh tokens,
// TOTP second factors and role-based authorization. The application
// uses gorm for data persistence and Redis for token, rate-limit and
// cache state shared across instances.
package main
