package shopify

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

const oauthScopes = "read_products,read_customers,read_orders,write_orders," +
	"read_price_rules,write_price_rules,read_discounts,write_discounts"

// AuthorizeURL builds the Shopify OAuth authorization URL plus the state
// token the callback must echo back.
func AuthorizeURL(clientID, shopDomain, redirectURI string) (string, string, error) {
	state, err := generateState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}

	authURL := fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shopHost(shopDomain),
		clientID,
		oauthScopes,
		url.QueryEscape(redirectURI),
		state,
	)
	return authURL, state, nil
}

// shopHost normalizes a shop domain: a bare handle gets the
// .myshopify.com suffix, a full domain passes through.
func shopHost(domain string) string {
	if domain == "" {
		return domain
	}
	if !strings.Contains(domain, ".") {
		return domain + ".myshopify.com"
	}
	return domain
}

func generateState() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
