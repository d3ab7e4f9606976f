// Package apikey generates and recognizes the platform's opaque API keys.
//
// A key is a bearer secret: its validity is established purely by lookup
// in the credential store, never by structure. The fixed "sk_" prefix
// exists only so request middleware can route a credential to the right
// resolution path without touching storage.
package apikey
