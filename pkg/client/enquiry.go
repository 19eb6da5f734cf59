package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"
)

// ErrInvalidEnquiry is wrapped by every enquiry validation error.
var ErrInvalidEnquiry = errors.New("invalid enquiry")

// Enquiry is a message to a listing's owner.
type Enquiry struct {
	ListingID   string `json:"listingId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Horses      int    `json:"numberOfHorses,omitempty"`
	PaddockType string `json:"paddockType,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	Message     string `json:"message"`
}

// EnquiryReceipt acknowledges a submitted enquiry.
type EnquiryReceipt struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Validate checks the fields the API requires.
func (e Enquiry) Validate() error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"listing id", e.ListingID},
		{"name", e.Name},
		{"email", e.Email},
		{"message", e.Message},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidEnquiry, strings.Join(missing, ", "))
	}
	if addr, err := mail.ParseAddress(e.Email); err != nil || addr.Address != e.Email {
		return fmt.Errorf("%w: email %q is not an address", ErrInvalidEnquiry, e.Email)
	}
	if e.Horses < 0 {
		return fmt.Errorf("%w: number of horses must not be negative", ErrInvalidEnquiry)
	}
	if e.StartDate != "" {
		if _, err := time.Parse(time.DateOnly, e.StartDate); err != nil {
			return fmt.Errorf("%w: start date must be YYYY-MM-DD", ErrInvalidEnquiry)
		}
	}
	return nil
}

// SubmitEnquiry validates and sends e. Submissions are not retried, so a
// timeout never sends the same enquiry twice.
func (c *Client) SubmitEnquiry(ctx context.Context, e Enquiry) (EnquiryReceipt, error) {
	if err := e.Validate(); err != nil {
		return EnquiryReceipt{}, err
	}
	var r EnquiryReceipt
	if err := c.do(ctx, http.MethodPost, "/enquiries", nil, e, &r); err != nil {
		return EnquiryReceipt{}, fmt.Errorf("submitting enquiry: %w", err)
	}
	return r, nil
}
