package ogd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the data.gov.in OGD resource for daily mandi prices
// (variety-wise arrival and price of commodities).
const DefaultBaseURL = "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070"

// MaxPageSize is the largest page the OGD API will serve per request.
const MaxPageSize = 500

type Client struct {
	apiKey  string
	baseURL string
	client  *resty.Client
}

// RawRecord is one loosely-typed row as returned by the OGD API. Price fields
// arrive as either JSON strings or numbers depending on the dataset revision,
// so they are decoded untyped and coerced by the ingester.
type RawRecord struct {
	State       string      `json:"state"`
	District    string      `json:"district"`
	Market      string      `json:"market"`
	Commodity   string      `json:"commodity"`
	Variety     string      `json:"variety"`
	ArrivalDate string      `json:"arrival_date"`
	MinPrice    interface{} `json:"min_price"`
	MaxPrice    interface{} `json:"max_price"`
	ModalPrice  interface{} `json:"modal_price"`
}

type pageResponse struct {
	Records []RawRecord `json:"records"`
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// FetchPage requests one page of records for a (commodity, arrival date)
// pair. date must be in "DD/MM/YYYY" form. The second return value reports
// whether another page should be requested at offset+limit.
func (c *Client) FetchPage(commodity, date string, offset, limit int) ([]RawRecord, bool, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	resp, err := c.client.R().
		SetQueryParams(map[string]string{
			"api-key":               c.apiKey,
			"format":                "json",
			"filters[commodity]":    commodity,
			"filters[arrival_date]": date,
			"limit":                 strconv.Itoa(limit),
			"offset":                strconv.Itoa(offset),
		}).
		Get(c.baseURL)
	if err != nil {
		return nil, false, fmt.Errorf("fetching %s on %s: %w", commodity, date, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, false, fmt.Errorf("fetching %s on %s: API returned status %d", commodity, date, resp.StatusCode())
	}

	var page pageResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, false, fmt.Errorf("decoding page for %s on %s: %w", commodity, date, err)
	}

	return page.Records, len(page.Records) == limit, nil
}
