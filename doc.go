// Package session implements the client-side session and authorization core
// of the news portal front end: a persisted credential store, an API client
// that normalizes authentication responses into a Session record, a
// process-wide reactive Manager holding that record, and route guards that
// gate rendering on the derived capabilities.
//
// Boot sequence:
//   - The Manager starts anonymous with loading=true. Boot checks the Store
//     for a persisted token, validates it against the API, and settles the
//     Manager either populated or anonymous. Guards render a pending view
//     while loading is true so no protected content (or redirect) is emitted
//     before the check resolves.
//
// Writer paths:
//   - Exactly one writer path exists per transition: Boot, the login family
//     (Login, Register, FederatedLogin) which replace the Session wholesale,
//     Merge which reconciles partial server responses after mutations, and
//     Clear on logout or when the API signals the credential is invalid.
//     Nothing else mutates Session fields.
//
// Capabilities:
//   - IsAuthenticated, IsAdmin and IsPremium are derived from Session fields
//     on every call and never cached, so a Merge is immediately reflected in
//     every guard decision.
package session
