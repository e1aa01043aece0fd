/*
Package jwks resolves JSON Web Keys by key identifier from a cached key set.

A Client reads a key set document from a source.Source, parses it with
jwk.Parse and keeps the result as one immutable snapshot. Lookups against the
snapshot do not block. A kid that is not in the snapshot is taken as a sign
that the remote set rotated: the client fetches once more, at most once per
minimum refresh interval, and looks again.

Basic usage:

	src, err := source.NewWebSource("https://tenant.eu.auth0.com/.well-known/jwks.json",
	    source.WithTimeout(5*time.Second),
	)
	if err != nil {
	    return err
	}

	client := jwks.New(src, jwks.WithMinRefreshInterval(time.Minute))

	key, err := client.Get(ctx, kid)
	switch {
	case errors.Is(err, jerrors.ErrKeyNotFound):
	    // the kid does not exist
	case errors.Is(err, jerrors.ErrSourceUnavailable):
	    // try again later
	}

At most one fetch runs per client. Concurrent lookups that need a fetch wait
for the same one and all get its snapshot or its error.
*/
package jwks
