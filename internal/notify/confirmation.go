package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/opd-frontdesk/internal/opd"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

// BookingConfirmer emails the patient after an OPD booking is stored.
type BookingConfirmer struct {
	email    EmailSender
	hospital string
	location *time.Location
	logger   *logging.Logger
}

// NewBookingConfirmer builds a confirmer. A nil sender disables it.
func NewBookingConfirmer(email EmailSender, hospital string, logger *logging.Logger) *BookingConfirmer {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(hospital) == "" {
		hospital = "the hospital"
	}
	return &BookingConfirmer{
		email:    email,
		hospital: hospital,
		location: time.Local,
		logger:   logger.Component("notify.confirm"),
	}
}

// SendBookingConfirmation implements opd.ConfirmationSender.
func (b *BookingConfirmer) SendBookingConfirmation(ctx context.Context, c opd.Confirmation) error {
	if b == nil || b.email == nil {
		return nil
	}
	if strings.TrimSpace(c.Email) == "" {
		b.logger.Debug("no patient email, skipping confirmation", "booking_id", c.Receipt.BookingID)
		return nil
	}
	msg := b.render(c)
	if err := b.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking confirmation %s: %w", c.Receipt.BookingID, err)
	}
	return nil
}

func (b *BookingConfirmer) render(c opd.Confirmation) EmailMessage {
	booking := c.Receipt.Booking
	when := time.UnixMilli(booking.CreatedAt).In(b.location).Format("January 2, 2006 at 3:04 PM")
	amount := strconv.FormatFloat(booking.Amount, 'f', 2, 64)

	lines := []string{
		fmt.Sprintf("Hello %s,", c.PatientName),
		"",
		fmt.Sprintf("Your OPD booking at %s is confirmed.", b.hospital),
		"",
		"Doctor: " + booking.DoctorName,
		"Booked: " + when,
		fmt.Sprintf("Amount: %s (%s)", amount, booking.PaymentMethod),
		"Booking reference: " + booking.BookingID,
	}
	if note := strings.TrimSpace(booking.Note); note != "" {
		lines = append(lines, "Note: "+note)
	}
	body := strings.Join(lines, "\n")

	var sb strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(line))
		sb.WriteString("</p>")
	}

	return EmailMessage{
		To:      c.Email,
		ToName:  c.PatientName,
		Subject: fmt.Sprintf("OPD booking confirmed with %s", booking.DoctorName),
		Body:    body,
		HTML:    sb.String(),
	}
}

var _ opd.ConfirmationSender = (*BookingConfirmer)(nil)
