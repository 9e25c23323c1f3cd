// Package apollo looks up company firmographics by web domain.
package apollo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/triario/avatar-backend/internal/apierr"
)

const (
	DefaultBaseURL = "https://api.apollo.io/v1"
	service        = "apollo"
)

// Company is the subset of an organization record used to enrich contacts.
type Company struct {
	Name          string  `json:"name"`
	Domain        string  `json:"domain"`
	Industry      string  `json:"industry,omitempty"`
	Description   string  `json:"description,omitempty"`
	Employees     int     `json:"employees,omitempty"`
	FoundedYear   int     `json:"founded_year,omitempty"`
	Phone         string  `json:"phone,omitempty"`
	Address       string  `json:"address,omitempty"`
	AnnualRevenue float64 `json:"annual_revenue,omitempty"`
	Website       string  `json:"website,omitempty"`
	LinkedIn      string  `json:"linkedin,omitempty"`
}

// RevenueString formats annual revenue without exponent, empty when unknown.
func (c *Company) RevenueString() string {
	if c.AnnualRevenue <= 0 {
		return ""
	}
	return strconv.FormatFloat(c.AnnualRevenue, 'f', -1, 64)
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type organization struct {
	Name                  string          `json:"name"`
	PrimaryDomain         string          `json:"primary_domain"`
	Industry              string          `json:"industry"`
	ShortDescription      string          `json:"short_description"`
	EstimatedNumEmployees int             `json:"estimated_num_employees"`
	FoundedYear           int             `json:"founded_year"`
	Phone                 string          `json:"phone"`
	RawAddress            json.RawMessage `json:"raw_address"`
	AnnualRevenue         float64         `json:"annual_revenue"`
	WebsiteURL            string          `json:"website_url"`
	LinkedInURL           string          `json:"linkedin_url"`
}

// Enrich fetches the organization for domain. A domain Apollo does not know
// returns a NOT_FOUND error.
func (c *Client) Enrich(ctx context.Context, domain string) (*Company, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, &apierr.Error{Service: service, Code: apierr.CodeAPIError, Message: "domain is required"}
	}

	u := c.baseURL + "/organizations/enrich?" + url.Values{"domain": {domain}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apierr.FromTransport(service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.FromTransport(service, err)
	}

	c.logger.Debug("apollo enrich response",
		"domain", domain,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.FromStatus(service, resp.StatusCode, string(body))
	}

	var parsed struct {
		Organization *organization `json:"organization"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apierr.Invalid(service, err)
	}
	if parsed.Organization == nil {
		return nil, &apierr.Error{Service: service, Code: apierr.CodeNotFound, Status: resp.StatusCode, Message: "no organization for " + domain}
	}

	org := parsed.Organization
	company := &Company{
		Name:          org.Name,
		Domain:        firstNonEmpty(org.PrimaryDomain, domain),
		Industry:      org.Industry,
		Description:   org.ShortDescription,
		Employees:     org.EstimatedNumEmployees,
		FoundedYear:   org.FoundedYear,
		Phone:         org.Phone,
		Address:       formatAddress(org.RawAddress),
		AnnualRevenue: org.AnnualRevenue,
		Website:       org.WebsiteURL,
		LinkedIn:      org.LinkedInURL,
	}

	c.logger.Info("company enriched",
		"domain", domain,
		"name", company.Name,
		"industry", company.Industry,
	)
	return company, nil
}

// formatAddress accepts either a plain string or a structured address.
func formatAddress(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var a struct {
		Street     string `json:"street"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postal_code"`
		Country    string `json:"country"`
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return ""
	}
	var parts []string
	for _, p := range []string{a.Street, a.City, a.State, a.PostalCode, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsNotFound reports whether err means Apollo has no record for the domain.
func IsNotFound(err error) bool {
	var e *apierr.Error
	return errors.As(err, &e) && e.Code == apierr.CodeNotFound
}
