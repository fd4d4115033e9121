package ftp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PublicIPURL answers with the caller's public address in plain text.
const PublicIPURL = "https://api.ipify.org"

// GetServerPublicIP discovers the server's public IPv4, for PASV replies
// when running behind NAT.
func GetServerPublicIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PublicIPURL, nil)
	if err != nil {
		return "", fmt.Errorf("building public ip request: %w", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("getting public ip: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("getting public ip: unexpected status %s", res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("reading public ip: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}
