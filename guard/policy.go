package guard

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/askgroup/dealerportal/api"
	"github.com/gorilla/mux"
)

// Access classifies a route.
type Access int

const (
	// Protected routes require an authenticated session and, when Roles is
	// non-empty, one of Roles.
	Protected Access = iota
	// PublicOnly routes are for signed-out visitors; signed-in users are
	// sent to their home page.
	PublicOnly
)

// Route is one entry in the route table.
type Route struct {
	// Template is a gorilla/mux path template such as "/purchase-orders/{id}".
	Template string
	// Prefix matches every path under Template.
	Prefix bool
	Access Access
	Roles  []string
}

// Policy is the authoritative route and role-home table.
type Policy struct {
	routes      []Route
	router      *mux.Router
	homes       map[string]string
	defaultHome string
}

// DefaultHomes maps each role to its landing page.
func DefaultHomes() map[string]string {
	return map[string]string{
		api.RoleBuyer: "/products",
		api.RoleAdmin: "/dashboard",
	}
}

// DefaultRoutes is the dealer portal route table.
func DefaultRoutes() []Route {
	both := []string{api.RoleBuyer, api.RoleAdmin}
	admin := []string{api.RoleAdmin}
	return []Route{
		{Template: LoginPath, Access: PublicOnly},
		{Template: RegisterPath, Access: PublicOnly},
		{Template: ResetPasswordPath, Access: PublicOnly},
		{Template: UnauthorizedPath},
		{Template: "/products", Roles: both},
		{Template: "/cart", Roles: both},
		{Template: "/purchase-orders", Roles: both},
		{Template: "/purchase-orders/{id:[0-9]+}", Roles: both},
		{Template: "/dealer", Roles: both},
		{Template: "/invoices", Roles: both},
		{Template: "/dashboard", Roles: admin},
		{Template: "/admin/", Prefix: true, Roles: admin},
	}
}

// DefaultPolicy builds the policy from DefaultRoutes and DefaultHomes.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRoutes(), DefaultHomes(), "/dashboard")
	if err != nil {
		panic("guard: default policy: " + err.Error())
	}
	return p
}

// NewPolicy validates the tables and compiles the route templates.
// defaultHome is used for roles absent from homes.
func NewPolicy(routes []Route, homes map[string]string, defaultHome string) (*Policy, error) {
	if len(routes) == 0 {
		return nil, errors.New("guard: empty route table")
	}
	if defaultHome == "" {
		return nil, errors.New("guard: default home is required")
	}

	p := &Policy{
		routes:      make([]Route, len(routes)),
		router:      mux.NewRouter(),
		homes:       make(map[string]string, len(homes)),
		defaultHome: defaultHome,
	}
	copy(p.routes, routes)

	for i, rt := range p.routes {
		if !strings.HasPrefix(rt.Template, "/") {
			return nil, fmt.Errorf("guard: route %q must start with /", rt.Template)
		}
		if rt.Access == PublicOnly && len(rt.Roles) > 0 {
			return nil, fmt.Errorf("guard: public route %q cannot restrict roles", rt.Template)
		}
		normalized := make([]string, len(rt.Roles))
		for j, role := range rt.Roles {
			normalized[j] = strings.ToLower(role)
		}
		p.routes[i].Roles = normalized

		var r *mux.Route
		if rt.Prefix {
			r = p.router.PathPrefix(rt.Template)
		} else {
			r = p.router.Path(rt.Template)
		}
		r.Name(fmt.Sprint(i))
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("guard: route %q: %w", rt.Template, err)
		}
	}

	for role, home := range homes {
		role = strings.ToLower(role)
		rt, ok := p.lookup(home)
		if !ok || rt.Access != Protected {
			return nil, fmt.Errorf("guard: home %q for role %q is not a protected route", home, role)
		}
		if len(rt.Roles) > 0 && !contains(rt.Roles, role) {
			return nil, fmt.Errorf("guard: home %q is not reachable by role %q", home, role)
		}
		p.homes[role] = home
	}

	return p, nil
}

// Routes returns a copy of the route table.
func (p *Policy) Routes() []Route {
	out := make([]Route, len(p.routes))
	copy(out, p.routes)
	return out
}

// Home returns the landing page for role.
func (p *Policy) Home(role string) string {
	if home, ok := p.homes[strings.ToLower(role)]; ok {
		return home
	}
	return p.defaultHome
}

// Match returns the route serving target, if any.
func (p *Policy) Match(target string) (Route, bool) {
	return p.lookup(target)
}

// Check resolves target against the table. Public-only routes bounce
// signed-in viewers home; protected routes apply CheckRoles; the root path
// and unknown paths land the viewer on login or their home page.
func (p *Policy) Check(v Viewer, target string) Decision {
	rt, ok := p.lookup(target)
	if !ok {
		return p.Landing(v)
	}
	if rt.Access == PublicOnly {
		return p.PublicOnly(v)
	}
	return CheckRoles(v, target, rt.Roles...)
}

// PublicOnly keeps signed-in viewers off the login and registration pages.
func (p *Policy) PublicOnly(v Viewer) Decision {
	if v == nil {
		return allow()
	}
	if v.Loading() {
		return suspend()
	}
	if v.IsAuthenticated() {
		return redirect(p.Home(v.Role()))
	}
	return allow()
}

// Landing is the decision for "/" and unknown routes.
func (p *Policy) Landing(v Viewer) Decision {
	if v == nil {
		return redirect(LoginPath)
	}
	if v.Loading() {
		return suspend()
	}
	if !v.IsAuthenticated() {
		return redirect(LoginPath)
	}
	return redirect(p.Home(v.Role()))
}

func (p *Policy) lookup(target string) (Route, bool) {
	u, err := url.Parse(target)
	if err != nil || u.Path == "" {
		return Route{}, false
	}

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: u.Path}}
	var match mux.RouteMatch
	if !p.router.Match(req, &match) || match.Route == nil {
		return Route{}, false
	}

	var idx int
	if _, err := fmt.Sscan(match.Route.GetName(), &idx); err != nil {
		return Route{}, false
	}
	return p.routes[idx], true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
