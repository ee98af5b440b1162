package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// CheckHealth calls the health endpoint of a collaborator. Anything but a 200
// is an error.
func CheckHealth(ctx context.Context, client *http.Client, service, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", service, ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, &StatusError{
			Service:    service,
			StatusCode: res.StatusCode,
		})
	}

	return nil
}
