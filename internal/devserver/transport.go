package devserver

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Transport serves HTTP client requests from app in-process, so a client built on net/http can
// talk to the devserver without a listener. The request context is honored.
func Transport(app *fiber.App) http.RoundTripper {
	return &appTransport{app: app}
}

type appTransport struct {
	app *fiber.App
}

type roundTrip struct {
	resp *http.Response
	err  error
}

func (t *appTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan roundTrip, 1)
	go func() {
		resp, err := t.app.Test(req, -1)
		done <- roundTrip{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		r.resp.Request = req
		return r.resp, nil
	}
}
