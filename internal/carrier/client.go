// Package carrier queries shipment routes from the express carrier's open
// platform.
package carrier

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeMC777/ordenes-checkout/internal/apperr"
)

const (
	SandboxURL    = "https://sfapi-sbox.sf-express.com/std/service"
	ProductionURL = "https://sfapi.sf-express.com/std/service"

	serviceSearchRoutes = "EXP_RECE_SEARCH_ROUTES"
	trackByOrderNumber  = "2"
)

type Config struct {
	PartnerID string
	Checkword string
	BaseURL   string
	Timeout   time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, now: time.Now}
}

// Configured reports whether credentials were supplied.
func (c *Client) Configured() bool {
	return c.cfg.PartnerID != "" && c.cfg.Checkword != ""
}

// Digest is the request signature: base64 of the MD5 of the form-escaped
// concatenation of payload, timestamp and checkword.
func Digest(msgData, timestamp, checkword string) string {
	sum := md5.Sum([]byte(url.QueryEscape(msgData + timestamp + checkword)))
	return base64.StdEncoding.EncodeToString(sum[:])
}

type routeQuery struct {
	Language       string   `json:"language"`
	TrackingType   string   `json:"trackingType"`
	TrackingNumber []string `json:"trackingNumber"`
	MethodType     string   `json:"methodType"`
}

// QueryRoute returns the carrier's route response for an order, unparsed.
func (c *Client) QueryRoute(ctx context.Context, orderNumber string) (json.RawMessage, error) {
	if orderNumber == "" {
		return nil, fmt.Errorf("%w: order number is required", apperr.ErrValidation)
	}
	msg, err := json.Marshal(routeQuery{
		Language:       "0",
		TrackingType:   trackByOrderNumber,
		TrackingNumber: []string{orderNumber},
		MethodType:     "1",
	})
	if err != nil {
		return nil, err
	}
	return c.call(ctx, serviceSearchRoutes, string(msg))
}

func (c *Client) call(ctx context.Context, serviceCode, msgData string) (json.RawMessage, error) {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	form := url.Values{
		"partnerID":   {c.cfg.PartnerID},
		"requestID":   {uuid.NewString()},
		"serviceCode": {serviceCode},
		"timestamp":   {ts},
		"msgDigest":   {Digest(msgData, ts, c.cfg.Checkword)},
		"msgData":     {msgData},
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: carrier %s: %v", apperr.ErrGateway, serviceCode, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read carrier response: %v", apperr.ErrGateway, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: carrier %s returned HTTP %d", apperr.ErrGateway, serviceCode, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: carrier %s returned a non-JSON body", apperr.ErrGateway, serviceCode)
	}
	return json.RawMessage(body), nil
}
