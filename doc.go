// Package dealerportal is the client-side state layer of the dealer ordering
// portal: who is signed in, what is in the cart, and which pages the current
// viewer may open.
//
// A [Portal] is assembled with [Builder]. It owns one [SessionStore], one
// cart.Cart, one guard.Policy and one api.Client whose bearer header is
// filled from the session. Every component is injected through Build; there
// are no package-level singletons, so several portals (one per shop, one per
// test) can live in the same process.
//
// # Session lifecycle
//
// A freshly built portal is in [StateLoading] and the guard suspends every
// decision until [SessionStore.Restore] settles it. Restore decodes the
// stored token locally; the token is never verified against the API at
// startup. Login, Register and ResetPassword are the only operations that
// call the API. Logout is local only. Any 401 from any API call runs
// [SessionStore.ForceLogout] and the redirect hooks registered with
// [Builder.OnRedirect].
//
// # Architecture boundaries
//
// dealerportal is the public surface. Transport lives in api, token decoding
// in jwt, persistence in storage, the cart in cart and the route table in
// guard. Audit dispatch is under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Hold the session mutex across network or storage I/O.
//   - Treat a decoded token as proof of identity; the API remains the
//     authority and answers 401 when it disagrees.
//   - Import any sub-package that re-imports dealerportal (no import cycles).
package dealerportal
