package relay

import (
	"net/http"
)

// Handler serves the downstream response at path, fetched with strategy.
// The downstream Content-Type is kept, falling back to text/plain.
// Failures are answered with HTTPStatus(err) and the status text; downstream
// bodies of failed calls are not forwarded.
func (r *Relay) Handler(strategy Strategy, path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := r.FetchResponse(req.Context(), strategy, path)
		if err != nil {
			status := HTTPStatus(err)
			if r.logger != nil {
				r.logger.Printf("relay: %s fetch of %s failed with %d: %v", strategy, path, status, err)
			}
			http.Error(w, http.StatusText(status), status)
			return
		}

		contentType := resp.ContentType()
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.Body)
	})
}
