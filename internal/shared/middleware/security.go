package middleware

import (
	"net"
	"net/http"
	"strings"
)

const hstsValue = "max-age=31536000; includeSubDomains"

// HSTS pins clients to HTTPS for a year.
func HSTS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", hstsValue)
		next.ServeHTTP(w, r)
	})
}

// SecureCookies rewrites every Set-Cookie header on the way out so it carries
// Secure, HttpOnly and a SameSite policy.
func SecureCookies(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&cookieGuard{ResponseWriter: w}, r)
	})
}

type cookieGuard struct {
	http.ResponseWriter
	flushed bool
}

func (g *cookieGuard) Write(b []byte) (int, error) {
	if !g.flushed {
		g.WriteHeader(http.StatusOK)
	}
	return g.ResponseWriter.Write(b)
}

func (g *cookieGuard) WriteHeader(status int) {
	if g.flushed {
		return
	}
	g.flushed = true

	h := g.ResponseWriter.Header()
	if cookies := h.Values("Set-Cookie"); len(cookies) > 0 {
		h.Del("Set-Cookie")
		for _, c := range cookies {
			h.Add("Set-Cookie", hardenCookie(c))
		}
	}
	g.ResponseWriter.WriteHeader(status)
}

func hardenCookie(cookie string) string {
	var attrs []string
	var secure, httpOnly, sameSite bool

	for _, part := range strings.Split(cookie, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch lower := strings.ToLower(part); {
		case lower == "secure":
			secure = true
		case lower == "httponly":
			httpOnly = true
		case strings.HasPrefix(lower, "samesite"):
			sameSite = true
		}
		attrs = append(attrs, part)
	}

	if !secure {
		attrs = append(attrs, "Secure")
	}
	if !httpOnly {
		attrs = append(attrs, "HttpOnly")
	}
	if !sameSite {
		attrs = append(attrs, "SameSite=Strict")
	}
	return strings.Join(attrs, "; ")
}

// RedirectToHTTPS answers every plain HTTP request with a permanent redirect
// to the same path over HTTPS. Hosts outside allowedHosts get a 400 so the
// Location header cannot be poisoned.
func RedirectToHTTPS(allowedHosts []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsHostAllowed(r.Host, allowedHosts) {
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		}

		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
			if strings.Contains(h, ":") {
				host = "[" + h + "]"
			}
		}
		http.Redirect(w, r, "https://"+host+r.RequestURI, http.StatusMovedPermanently)
	})
}
