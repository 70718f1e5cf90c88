package httpx

import "golang.org/x/crypto/acme/autocert"

const certCacheDir = "assets/cache"

type TLS struct {
	CertManager *autocert.Manager
}

// NewTLSConfig makes a Let's Encrypt certificate manager
// restricted to the given host when it's set.
func NewTLSConfig(host string) *TLS {
	tls := TLS{
		CertManager: &autocert.Manager{
			Prompt: autocert.AcceptTOS,
			Cache:  autocert.DirCache(certCacheDir),
		},
	}
	if host != "" {
		tls.CertManager.HostPolicy = autocert.HostWhitelist(host)
	}
	return &tls
}
