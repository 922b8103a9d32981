// Package partner talks to the wholesale platform's REST API: one login
// endpoint that issues bearer tokens, and one customer endpoint that
// registers or updates customers.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CustomerPayload is the partner's customer schema. Field names (including
// the misspelled finalCostumer) are fixed by their API contract.
type CustomerPayload struct {
	Corporate                  bool   `json:"corporate"`
	Name                       string `json:"name"`
	TradeName                  string `json:"tradeName"`
	PersonIdentificationNumber string `json:"personIdentificationNumber"`
	StateInscription           string `json:"stateInscription"`
	CommercialAddress          string `json:"commercialAddress"`
	CommercialAddressNumber    string `json:"commercialAddressNumber"`
	BusinessDistrict           string `json:"businessDistrict"`
	CommercialZipCode          string `json:"commercialZipCode"`
	BillingPhone               string `json:"billingPhone"`
	Email                      string `json:"email"`
	EmailNfe                   string `json:"emailNfe"`
	CustomerOrigin             string `json:"customerOrigin"`
	FinalCostumer              bool   `json:"finalCostumer"`
	BillingID                  int    `json:"billingId"`
	SquareID                   int    `json:"squareId"`
	ActivityID                 int    `json:"activityId"`
	BusinessCity               string `json:"businessCity"`
	SellerID                   int    `json:"sellerId"`
	CityID                     int    `json:"cityId"`
	CountryID                  int    `json:"countryId"`
	DocumentType               int    `json:"documentType"`
}

// RejectionError is a 4xx response from the customer endpoint. The body is
// kept verbatim: it becomes the operator-visible recusal reason.
type RejectionError struct {
	StatusCode int
	Body       string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("partner rejected submission (%d): %s", e.StatusCode, e.Body)
}

type Client struct {
	authBaseURL string
	baseURL     string
	login       string
	password    string
	httpClient  *http.Client
}

func NewClient(authBaseURL, baseURL, login, password string) *Client {
	return &Client{
		authBaseURL: strings.TrimRight(authBaseURL, "/"),
		baseURL:     strings.TrimRight(baseURL, "/"),
		login:       login,
		password:    password,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"senha"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login obtains a fresh bearer token from the authentication endpoint.
func (c *Client) Login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Login: c.login, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBaseURL+"/login", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read login response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("login returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var lr loginResponse
	if err := json.Unmarshal(respBody, &lr); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if lr.AccessToken == "" {
		return "", fmt.Errorf("login response missing accessToken")
	}

	return lr.AccessToken, nil
}

type registerResponse struct {
	ID json.Number `json:"Id"`
}

// RegisterCustomer submits a customer to the partner. A 2xx response yields
// the partner-assigned customer id. A 4xx response is returned as a
// *RejectionError carrying the opaque body verbatim. Anything else (5xx,
// transport failure) is a transient error and leaves no mark on the record.
func (c *Client) RegisterCustomer(ctx context.Context, token string, payload CustomerPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal customer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("register request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read register response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var rr registerResponse
		if err := json.Unmarshal(respBody, &rr); err != nil {
			return "", fmt.Errorf("failed to parse register response: %w", err)
		}
		if rr.ID.String() == "" {
			return "", fmt.Errorf("register response missing Id: %s", string(respBody))
		}
		return rr.ID.String(), nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", &RejectionError{StatusCode: resp.StatusCode, Body: string(respBody)}

	default:
		return "", fmt.Errorf("register returned status %d: %s", resp.StatusCode, string(respBody))
	}
}
