package session

import (
	"net/http"

	"github.com/goliatone/go-router"
)

// DefaultSignInPath is where unauthenticated requests are redirected.
const DefaultSignInPath = "/login"

// DefaultPasswordSetupPath is where authenticated users without a
// credential of their own are redirected.
const DefaultPasswordSetupPath = "/setup-password"

// RouteGuard gates routes on the controller's snapshot: unauthenticated
// goes to sign-in, authenticated without a password goes to password setup,
// anything else passes through.
type RouteGuard struct {
	state             func() AuthState
	SignInPath        string
	PasswordSetupPath string
	Logger            Logger
}

// NewRouteGuard builds a guard reading snapshots from the controller.
func NewRouteGuard(controller *Controller) *RouteGuard {
	return &RouteGuard{
		state:             controller.State,
		SignInPath:        DefaultSignInPath,
		PasswordSetupPath: DefaultPasswordSetupPath,
		Logger:            defLogger{},
	}
}

// NewRouteGuardFunc builds a guard over an arbitrary snapshot source.
func NewRouteGuardFunc(state func() AuthState) *RouteGuard {
	return &RouteGuard{
		state:             state,
		SignInPath:        DefaultSignInPath,
		PasswordSetupPath: DefaultPasswordSetupPath,
		Logger:            defLogger{},
	}
}

// Protect returns the middleware enforcing the guard.
func (g *RouteGuard) Protect() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			state := g.state()

			if !state.SignedIn() {
				g.Logger.Debug("guard: unauthenticated request to %s", c.Path())
				return g.redirect(c, g.SignInPath)
			}

			if state.NeedsPasswordSetup() {
				g.Logger.Debug("guard: password setup pending for %s", state.User.Email)
				return g.redirect(c, g.PasswordSetupPath)
			}

			return c.Next()
		}
	}
}

// RequireAdmin returns middleware that additionally requires the admin role.
// Non-admin principals get a plain 403 rather than a redirect loop.
func (g *RouteGuard) RequireAdmin() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			state := g.state()

			if !state.SignedIn() {
				return g.redirect(c, g.SignInPath)
			}

			if !state.User.IsAdmin() {
				return c.Status(http.StatusForbidden).SendString("forbidden")
			}

			return c.Next()
		}
	}
}

func (g *RouteGuard) redirect(c router.Context, target string) error {
	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(target, statusCode)
}
