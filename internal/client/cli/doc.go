// Package cli is the estately command-line client.
//
// Each cobra subcommand maps onto one auth API call: register, login,
// whoami, status, role, refresh, logout and ping. Tokens are kept in a
// 0600 session file between runs, so a login in one invocation is used by
// the next. Expired access tokens are refreshed silently by the client.
package cli
