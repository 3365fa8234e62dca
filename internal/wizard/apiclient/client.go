// Package apiclient is the HTTP transport the booking wizard uses to reach
// the booking API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/novellus/pilates-booking/internal/bookings"
	"github.com/novellus/pilates-booking/internal/http/respond"
	"github.com/novellus/pilates-booking/internal/payments"
	"github.com/novellus/pilates-booking/internal/schema"
	"github.com/novellus/pilates-booking/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 20 * time.Second

	paymentFailedPrefix = "Payment not successful. Status: "
)

// APIError is a non-2xx response from the booking API.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []schema.FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("booking API returned %d", e.StatusCode)
	}
	return fmt.Sprintf("booking API returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the booking API over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
}

// New constructs a booking API client.
func New(baseURL string, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// CreateBooking posts the assembled submission. Field rejections come back
// as *schema.ValidationError.
func (c *Client) CreateBooking(ctx context.Context, sub schema.BookingSubmission) (*bookings.Booking, error) {
	var b bookings.Booking
	if err := c.doJSON(ctx, http.MethodPost, "/api/booking", sub, &b); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &b, nil
}

// GetBooking fetches a booking by id.
func (c *Client) GetBooking(ctx context.Context, id int64) (*bookings.Booking, error) {
	var b bookings.Booking
	if err := c.doJSON(ctx, http.MethodGet, "/api/booking/"+strconv.FormatInt(id, 10), nil, &b); err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

// CreatePaymentIntent requests a payment intent for a booking.
func (c *Client) CreatePaymentIntent(ctx context.Context, bookingID int64) (*payments.IntentResponse, error) {
	req := map[string]int64{"bookingId": bookingID}
	var resp payments.IntentResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/create-payment-intent", req, &resp); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &resp, nil
}

// ConfirmPayment asks the server to verify the intent. An unsuccessful
// provider status comes back as *payments.PaymentFailedError.
func (c *Client) ConfirmPayment(ctx context.Context, bookingID int64, paymentIntentID string) (*bookings.Booking, error) {
	req := struct {
		BookingID       int64  `json:"bookingId"`
		PaymentIntentID string `json:"paymentIntentId"`
	}{bookingID, paymentIntentID}

	var resp struct {
		Success bool              `json:"success"`
		Booking *bookings.Booking `json:"booking"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/confirm-payment", req, &resp); err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	if !resp.Success || resp.Booking == nil {
		return nil, errors.New("confirm payment: server did not confirm the booking")
	}
	return resp.Booking, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("booking API non-2xx response", "status", resp.StatusCode, "path", path)
		return decodeError(resp.StatusCode, respBody)
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError maps an error body onto the server-side error types so
// callers can match them with errors.Is and errors.As.
func decodeError(status int, body []byte) error {
	var eb respond.ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		eb.Message = msg
	}
	apiErr := &APIError{StatusCode: status, Message: eb.Message, Errors: eb.Errors}

	switch {
	case status == http.StatusBadRequest && len(eb.Errors) > 0:
		return &schema.ValidationError{Errors: eb.Errors}
	case status == http.StatusBadRequest && strings.HasPrefix(eb.Message, paymentFailedPrefix):
		return &payments.PaymentFailedError{Status: strings.TrimPrefix(eb.Message, paymentFailedPrefix)}
	case status == http.StatusNotFound && strings.Contains(eb.Message, "Booking"):
		return fmt.Errorf("%w: %w", apiErr, payments.ErrBookingNotFound)
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %w", apiErr, payments.ErrAlreadyFinalised)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", apiErr, payments.ErrVelocityExceeded)
	default:
		return apiErr
	}
}
