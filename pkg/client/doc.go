// Package client talks to the workspace and custom domain API.
//
// Every call needs a session token for the workspace owner:
//
//	c := client.New("https://toolbox.app",
//	    client.WithBearerToken(os.Getenv("TENANTEDGE_TOKEN")),
//	    client.WithApex("toolbox.app"),
//	)
//
// # Connecting a custom domain
//
// AddDomain validates the name locally, then claims it for the workspace.
// The returned Domain carries the DNS records the owner must publish:
//
//	d, err := c.AddDomain(ctx, "acme", "www.acme.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("CNAME %s -> %s\n", d.DNS.CNAMEHost, d.DNS.CNAMETarget)
//
// Once the record is live, VerifyDomain runs the DNS check. A failed check
// is not an error; inspect Verified and Reason:
//
//	res, err := c.VerifyDomain(ctx, "acme", "www.acme.com")
//	if err == nil && !res.Verified {
//	    fmt.Println("not yet:", res.Reason)
//	}
//
// # Errors
//
// Non-2xx responses are returned as *APIError and match the sentinel errors
// with errors.Is:
//
//	if errors.Is(err, client.ErrConflict) {
//	    // the domain belongs to another workspace
//	}
package client
