// Package gotrue implements session.IdentityClient against a GoTrue-style
// identity API (the auth server behind Supabase and friends): password
// grant, one-time links, sign-up, credential updates, token refresh, and a
// local event stream mirroring the provider's auth-state notifications.
//
// Token format and validation stay inside this package; the controller only
// ever sees session.Session values.
package gotrue
