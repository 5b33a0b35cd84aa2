// Package middleware resolves the caller identity for every API request.
// Identity comes from headers, never from the URL: a service key for the
// ingestion pipeline, an organizer code for event owners, an access code
// for anonymous attendees.
package middleware

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/grapic/facematch/internal/facestore"
	"github.com/grapic/facematch/internal/tenancy"
)

// Request headers carrying caller credentials.
const (
	HeaderServiceKey    = "X-Service-Key"
	HeaderOrganizerCode = "X-Organizer-Code"
	HeaderAccessCode    = "X-Access-Code"
)

type ctxKey int

const principalKey ctxKey = iota

// Principal returns middleware that resolves the caller to a tenancy
// principal and stores it in the request context. Unresolvable credentials
// degrade to an unscoped anonymous principal; authorization decisions stay
// with the tenancy layer, this only establishes who is asking.
func Principal(events facestore.EventReader, serviceKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := resolve(r, events, serviceKey)
			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolve(r *http.Request, events facestore.EventReader, serviceKey string) tenancy.Principal {
	if key := r.Header.Get(HeaderServiceKey); key != "" && serviceKey != "" {
		if subtle.ConstantTimeCompare([]byte(key), []byte(serviceKey)) == 1 {
			return tenancy.ServicePrincipal{}
		}
		return tenancy.Anonymous{}
	}

	if code := r.Header.Get(HeaderOrganizerCode); code != "" {
		ev, err := events.GetEventByOrganizerCode(r.Context(), code)
		if err != nil {
			log.Printf("middleware: resolving organizer code: %v", err)
			return tenancy.Anonymous{}
		}
		if ev != nil {
			return tenancy.Owner{UserID: ev.OwnerID}
		}
		return tenancy.Anonymous{}
	}

	if code := r.Header.Get(HeaderAccessCode); code != "" {
		ev, err := events.GetEventByAccessCode(r.Context(), code)
		if err != nil {
			log.Printf("middleware: resolving access code: %v", err)
			return tenancy.Anonymous{}
		}
		if ev != nil {
			return tenancy.Anonymous{EventID: ev.ID}
		}
	}

	return tenancy.Anonymous{}
}

// FromContext returns the resolved principal, defaulting to an unscoped
// anonymous caller.
func FromContext(ctx context.Context) tenancy.Principal {
	if p, ok := ctx.Value(principalKey).(tenancy.Principal); ok {
		return p
	}
	return tenancy.Anonymous{}
}
