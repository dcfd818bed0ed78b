package command

import (
	"fmt"

	"github.com/yndnr/geminid/internal/server/geminiserver"
)

// registerRoutes installs the built-in dynamic routes. Static content is
// served for every other path.
func registerRoutes(r *geminiserver.Router) error {
	routes := []struct {
		pattern string
		handler geminiserver.HandlerFunc
	}{
		{"/hi/:name", handleHello},
		{"/search", handleSearch},
		{"/whoami", handleWhoAmI},
	}
	for _, rt := range routes {
		if err := r.Handle(rt.pattern, rt.handler); err != nil {
			return err
		}
	}
	return nil
}

func handleHello(c *geminiserver.Context) error {
	return c.Gemtext(fmt.Sprintf("# Hello, %s!\n", c.Param("name")))
}

func handleSearch(c *geminiserver.Context) error {
	if !c.HasInput() {
		return c.RequestInput("Search query")
	}
	return c.Gemtext(fmt.Sprintf("# Search\n\nYou searched for: %s\n", c.Input()))
}

func handleWhoAmI(c *geminiserver.Context) error {
	cert := c.ClientCertificate()
	if cert == nil {
		return c.ClientCertificateRequired("Client certificate required")
	}
	return c.Gemtext(fmt.Sprintf("# %s\n\nFingerprint: %s\n", cert.Subject.CommonName, c.ClientFingerprint()))
}
